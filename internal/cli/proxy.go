package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/proxy"
)

var listenAddr string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve the cookie-authenticated API routes",
	Long: `Serve /api/notifications and /api/transactions for browser clients.

Each request is forwarded to the gateway with the caller's session cookie.`,
	RunE: runProxy,
}

func init() {
	proxyCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides proxy.listen_addr)")
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadEnv()
	if err != nil {
		return err
	}
	defer closer.Close()

	if listenAddr != "" {
		cfg.Proxy.ListenAddr = listenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	upstream := backend.NewClient(cfg.Backend.BaseURL, "", backend.WithTimeout(cfg.Backend.Timeout()))
	return proxy.New(cfg.Proxy, upstream, logger).Run(ctx)
}
