package cli

import (
	"github.com/spf13/cobra"

	"github.com/tablee/tablee/internal/auth"
	"github.com/tablee/tablee/internal/messaging"
	"github.com/tablee/tablee/internal/tui"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Open the interactive messaging inbox",
		Args:  cobra.NoArgs,
		RunE:  runInbox,
	}
	cmd.Flags().String("theme", "", "Color theme (default, high-contrast)")
	return cmd
}

func runInbox(cmd *cobra.Command, _ []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	userID, err := app.requireUser(cmd)
	if err != nil {
		return err
	}

	inbox := messaging.NewInbox(app.db, app.feed, userID)
	defer inbox.Detach()

	// Sign-out must drop the live subscriptions before the session clears.
	provider := auth.NewProvider(app.service,
		auth.WithDetach(inbox.Detach),
		auth.WithSignOutTimeout(app.cfg.Session.SignOutTimeout),
	)
	if err := provider.Activate(cmd.Context()); err != nil {
		return err
	}
	defer provider.Deactivate()

	if err := inbox.Load(cmd.Context()); err != nil {
		return err
	}

	theme := app.cfg.TUI.Theme
	if flag, _ := cmd.Flags().GetString("theme"); flag != "" {
		theme = flag
	}

	return tui.Run(inbox, provider, tui.Config{
		Theme:          theme,
		ShowTimestamps: app.cfg.TUI.ShowTimestamps,
		CompactMode:    app.cfg.TUI.CompactMode,
	})
}
