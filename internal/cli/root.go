// Package cli implements the tablee command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablee/tablee/internal/auth"
	"github.com/tablee/tablee/internal/config"
	"github.com/tablee/tablee/internal/logging"
	"github.com/tablee/tablee/internal/realtime"
	"github.com/tablee/tablee/internal/store"
)

// Execute runs the root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tablee",
		Short:         "Find restaurants and message the people you eat with",
		Long:          "tablee is a restaurant discovery and direct messaging client.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().String("config", "", "Config file path")

	cmd.AddCommand(
		newSignupCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newLinkCmd(),
		newInboxCmd(),
		newSendCmd(),
		newProfileCmd(),
		newRestaurantsCmd(),
	)

	return cmd
}

// app bundles the shared collaborators a command needs.
type app struct {
	cfg     *config.Config
	db      *store.DB
	feed    *realtime.Bus
	service *auth.Service
}

// setupApp loads config, initializes logging, and opens the database.
func setupApp(cmd *cobra.Command) (*app, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	service := auth.NewService(
		store.NewCredentialRepository(db),
		store.NewProfileRepository(db),
		auth.WithSessionPath(cfg.SessionPath()),
		auth.WithLinkTTL(cfg.Session.LoginLinkTTL),
	)

	return &app{
		cfg:     cfg,
		db:      db,
		feed:    realtime.NewBus(),
		service: service,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.feed != nil {
		a.feed.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// requireUser returns the signed-in user ID or an actionable error.
func (a *app) requireUser(cmd *cobra.Command) (string, error) {
	userID, err := a.service.CurrentUser(cmd.Context())
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", fmt.Errorf("not signed in; run `tablee login` first")
	}
	return userID, nil
}
