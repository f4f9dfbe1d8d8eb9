package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/credential"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/ui/login"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token in the keyring",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credential.ClearSessionToken(); err != nil {
			return fmt.Errorf("clearing session token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadEnv()
	if err != nil {
		return err
	}
	defer closer.Close()

	creds := &login.Credentials{BaseURL: cfg.Backend.BaseURL}
	if err := login.BuildForm(creds, 60).Run(); err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}
	creds.BaseURL = strings.TrimSpace(creds.BaseURL)
	creds.Token = strings.TrimSpace(creds.Token)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
	defer cancel()
	if err := login.ValidateWithGateway(ctx, creds.BaseURL, creds.Token); err != nil {
		return errors.New(backend.Describe(err))
	}

	if err := credential.SaveSessionToken(creds.Token); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	if creds.BaseURL != cfg.Backend.BaseURL {
		cfg.Backend.BaseURL = creds.BaseURL
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
	}

	logger.WithField("base_url", creds.BaseURL).Info("Signed in")
	fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
	return nil
}
