// Package proxy serves the browser-facing API routes. Each route forwards
// the caller's session cookie to the gateway API and re-wraps the answer in
// the {message, data} envelope.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	shutdownTimeout = 10 * time.Second
)

// Server is the API proxy.
type Server struct {
	cfg      model.ProxyConfig
	upstream *backend.Client
	metrics  *Metrics
	log      *logrus.Entry
	engine   *gin.Engine
}

// New builds the proxy. upstream carries the base URL and timeouts; its
// token is replaced per request by the caller's session cookie.
func New(cfg model.ProxyConfig, upstream *backend.Client, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		upstream: upstream,
		metrics:  NewMetrics(),
		log:      logging.Component(logger, "proxy"),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(s.log))
	r.Use(s.metrics.Middleware())

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	r.GET("/metrics", s.metrics.Handler())

	api := r.Group("/api", RequireSession())
	{
		api.GET("/notifications", s.listNotifications)
		api.PATCH("/notifications/read-all", s.markAllRead)
		api.PATCH("/notifications/:id/read", s.markRead)
		api.GET("/transactions", s.listTransactions)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.ListenAddr).Info("Proxy listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("proxy server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down proxy: %w", err)
	}
	s.log.Info("Proxy stopped")
	return nil
}

// client returns the upstream client bound to the caller's session.
func (s *Server) client(c *gin.Context) *backend.Client {
	return s.upstream.WithToken(c.GetString(sessionKey))
}

func (s *Server) listNotifications(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	out, err := s.client(c).ListNotifications(c.Request.Context(), page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications retrieved", "data": out})
}

func (s *Server) markRead(c *gin.Context) {
	rec, err := s.client(c).MarkNotificationRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	body := gin.H{"message": "Notification marked as read"}
	if rec != nil {
		body["data"] = rec
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) markAllRead(c *gin.Context) {
	n, err := s.client(c).MarkAllNotificationsRead(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
		"data":    gin.H{"updated_count": n},
	})
}

func (s *Server) listTransactions(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	out, err := s.client(c).ListTransactions(c.Request.Context(), page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transactions retrieved", "data": out})
}

// fail maps a backend error onto the response status.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var authErr *backend.AuthError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &authErr):
		s.metrics.BackendErrors.WithLabelValues("auth").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
	case errors.As(err, &apiErr):
		s.metrics.BackendErrors.WithLabelValues("api").Inc()
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		c.JSON(apiErr.StatusCode, gin.H{"message": msg})
	default:
		s.metrics.BackendErrors.WithLabelValues("transport").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"message": "Backend unavailable"})
	}
}

// pageParams reads ?page and ?limit, answering 400 when either is invalid.
func pageParams(c *gin.Context) (page, limit int, ok bool) {
	page, limit = defaultPage, defaultLimit
	var err error
	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "page must be a positive integer"})
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return 0, 0, false
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, true
}
