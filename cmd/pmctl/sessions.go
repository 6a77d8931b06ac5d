package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-pm/odyssey-pm/internal/app"
	"github.com/odyssey-pm/odyssey-pm/internal/auth"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage login sessions",
}

var sessionsRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Sign a user out of every session and drop their cached snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		return withServices(cmd.Context(), func(svc *app.Services) error {
			if svc.Redis == nil {
				return errors.New("redis unavailable")
			}
			store := shared.NewSessionManager(svc.Redis, svc.Config.SessionCookie, svc.Config.SessionTTL, false)
			records := auth.NewService(auth.NewRepository(svc.Pool))
			return revokeSessions(cmd.Context(), cmd.OutOrStdout(), store, records, svc.Principals, userID)
		})
	},
}

type sessionStore interface {
	RevokeUser(ctx context.Context, userID string) (int, error)
}

type sessionRecords interface {
	RemoveUserSessions(ctx context.Context, userID string) (int64, error)
}

type snapshotInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

func revokeSessions(ctx context.Context, w io.Writer, store sessionStore, records sessionRecords, cache snapshotInvalidator, userID string) error {
	live, err := store.RevokeUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke redis sessions: %w", err)
	}
	rows, err := records.RemoveUserSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete session records: %w", err)
	}
	if cache != nil {
		if err := cache.Invalidate(ctx, userID); err != nil {
			return fmt.Errorf("invalidate snapshot: %w", err)
		}
	}
	fmt.Fprintf(w, "revoked %d live sessions, removed %d records for %s\n", live, rows, userID)
	return nil
}

func init() {
	sessionsRevokeCmd.Flags().StringP("user", "u", "", "User ID")
	_ = sessionsRevokeCmd.MarkFlagRequired("user")
	sessionsCmd.AddCommand(sessionsRevokeCmd)
	rootCmd.AddCommand(sessionsCmd)
}
