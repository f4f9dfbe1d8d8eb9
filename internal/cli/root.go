// Package cli holds the paydash command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/paydash/internal/app"
	"github.com/nhle/paydash/internal/credential"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/store"
)

var (
	configPath string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "paydash",
		Short: "paydash - payment gateway dashboard",
		Long: `paydash shows notifications, transactions and live gateway events in the terminal.

Run without a subcommand to open the dashboard.`,
		RunE:          runDashboard,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Path to the config file")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(proxyCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(notificationsCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadEnv reads the config file and opens the logger it describes.
func loadEnv() (*model.AppConfig, *logrus.Logger, io.Closer, error) {
	return loadEnvWith(func(*model.AppConfig) {})
}

// loadEnvWith lets a command adjust the config before the logger opens.
func loadEnvWith(adjust func(*model.AppConfig)) (*model.AppConfig, *logrus.Logger, io.Closer, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	adjust(cfg)
	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// stderr belongs to the terminal UI.
	cfg, logger, closer, err := loadEnvWith(func(cfg *model.AppConfig) {
		if cfg.Logging.File == "" {
			cfg.Logging.File = filepath.Join(filepath.Dir(cfg.Store.Path), "paydash.log")
		}
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	token, err := credential.SessionToken()
	if err != nil {
		logger.WithError(err).Warn("Reading session token failed")
	}

	deps := app.Deps{
		Config:     cfg,
		ConfigPath: configPath,
		Token:      token,
		SaveToken:  credential.SaveSessionToken,
		Logger:     logger,
	}

	// The activity log is optional; the dashboard runs without it.
	events, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.WithError(err).Warn("Opening activity log failed")
	} else {
		defer events.Close()
		deps.Events = events
	}

	m := app.New(deps)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(app.Model); ok {
		fm.Close()
	}
	if err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
