package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/credential"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/ui"
)

var (
	listPage  int
	listLimit int
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"n"},
	Short:   "List and acknowledge notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one page of notifications",
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *backend.Client, args []string) error {
		out, err := c.ListNotifications(ctx, listPage, listLimit)
		if err != nil {
			return err
		}
		printNotifications(cmd.OutOrStdout(), out, time.Now())
		return nil
	}),
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark one notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *backend.Client, args []string) error {
		if _, err := c.MarkNotificationRead(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as read.\n", args[0])
		return nil
	}),
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *backend.Client, args []string) error {
		n, err := c.MarkAllNotificationsRead(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notifications as read.\n", n)
		return nil
	}),
}

func init() {
	notificationsListCmd.Flags().IntVarP(&listPage, "page", "p", 1, "Page number")
	notificationsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Records per page")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, c *backend.Client, args []string) error

// withClient loads config and the session token and hands a bound gateway
// client to fn.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := loadEnv()
		if err != nil {
			return err
		}
		defer closer.Close()

		token, err := credential.SessionToken()
		if err != nil {
			return fmt.Errorf("reading session token: %w", err)
		}
		if token == "" {
			return fmt.Errorf("not signed in; run `paydash login` first")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
		defer cancel()

		c := backend.NewClient(cfg.Backend.BaseURL, token, backend.WithTimeout(cfg.Backend.Timeout()))
		if err := fn(ctx, cmd, c, args); err != nil {
			return errors.New(backend.Describe(err))
		}
		return nil
	}
}

func printNotifications(w io.Writer, page *model.NotificationPage, now time.Time) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STATE", "SEVERITY", "TITLE", "DELIVERED")
	for _, rec := range page.Items {
		state := "read"
		if !rec.IsRead() {
			state = "unread"
		}
		t.Row(rec.ID, state, string(rec.Content.Severity), rec.Content.Title, ui.RelativeTime(rec.DeliveredAt, now))
	}
	fmt.Fprintln(w, t.String())

	fmt.Fprintf(w, "\n%s · %d total · %d unread on this page\n",
		ui.PageInfo(page.Page, page.Limit, page.Total), page.Total, model.CountUnread(page.Items))
}
