// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/config"
)

// storeOpener is swapped in tests.
var storeOpener = openCredentialStore

// NewUsersCmd creates the users subcommand.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect stored users",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (overrides config and DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print every user as a redacted key=value record",
		Long: `Print one line per user in the form "id=...;email=...;" with the
configured PII fields masked.`,
		RunE: runUsersDump,
	})
	return cmd
}

func runUsersDump(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ResolvePath(configFile), cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set --database-url, DATABASE_URL or HOLOAUTH_DATABASE_URL)")
	}

	ctx := cmd.Context()
	users, closeStore, err := storeOpener(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open credential store").Wrap(err)
	}
	defer closeStore()

	list, err := users.ListUsers(ctx)
	if err != nil {
		return oops.Code("USER_DUMP_FAILED").Wrap(err)
	}

	redactor := cfg.Redact.Redactor()
	out := cmd.OutOrStdout()
	for _, u := range list {
		if _, err := fmt.Fprintln(out, redactor.Message(userRecord(u))); err != nil {
			return oops.Code("USER_DUMP_FAILED").With("operation", "write record").Wrap(err)
		}
	}
	cmd.PrintErrf("%d user(s)\n", len(list))
	return nil
}

// userRecord renders u as a separator-delimited key=value line. The password
// hash and tokens are reduced to presence flags.
func userRecord(u *auth.User) string {
	return fmt.Sprintf("id=%s;email=%s;session=%t;reset_pending=%t;created_at=%s;updated_at=%s;",
		u.ID, u.Email, u.SessionID != nil, u.ResetToken != nil,
		u.CreatedAt.UTC().Format(time.RFC3339), u.UpdatedAt.UTC().Format(time.RFC3339))
}
