package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/pinboard/internal/access"
	"github.com/sundayezeilo/pinboard/internal/app"
	"github.com/sundayezeilo/pinboard/internal/auth"
	"github.com/sundayezeilo/pinboard/internal/config"
	"github.com/sundayezeilo/pinboard/internal/db"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pinboard",
		Short:         "Personal bookmark manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context())
			},
		},
		newTagsCmd(),
		newTokenCmd(),
	)
	return root
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	// Start server (blocks until shutdown)
	return application.Start(ctx)
}

func migrate(ctx context.Context) error {
	app.LoadEnv()

	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))

	pool, err := db.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database schema applied", "database", cfg.Name)
	return nil
}

func newTagsCmd() *cobra.Command {
	tagsCmd := &cobra.Command{Use: "tags", Short: "Tag maintenance"}

	var userID string
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete a user's tags that no pin carries",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}

			ctx := cmd.Context()
			application, err := app.New(ctx)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ac := access.New(&access.User{ID: id})
			n, err := application.Tags.DeleteTagsWithNoPins(ctx, ac, id)
			if err != nil {
				return err
			}
			application.Logger.Info("pruned tags", "user_id", id.String(), "removed", n)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d tags\n", n)
			return nil
		},
	}
	pruneCmd.Flags().StringVar(&userID, "user", "", "id of the user whose tags are pruned")
	_ = pruneCmd.MarkFlagRequired("user")

	tagsCmd.AddCommand(pruneCmd)
	return tagsCmd
}

// newTokenCmd mints a bearer token with the configured secret. It exists
// for local development, where no identity provider issues tokens.
func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		admin  bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.LoadEnv()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.App.IsDevelopment() {
				return fmt.Errorf("token issuing is disabled in %s", cfg.App.Environment)
			}

			id := uuid.New()
			if userID != "" {
				if id, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("--user must be a UUID: %w", err)
				}
			}

			authn, err := auth.New(auth.Config{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.JWTIssuer,
				TokenTTL: cfg.Auth.TokenTTL,
			})
			if err != nil {
				return err
			}

			u := access.User{ID: id, Email: email, Roles: []access.Role{access.RoleUser}}
			if admin {
				u.Roles = append(u.Roles, access.RoleAdmin)
			}
			token, err := authn.Issue(u)
			if err != nil {
				return err
			}

			slog.Debug("issued token", "user_id", id.String(), "admin", admin)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}
