// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the effective configuration",
		Long: `Load the configuration from the config file, the environment and any
flags given, then report whether the result is usable.`,
		Args: cobra.NoArgs,
		RunE: runConfigValidate,
	}
	config.RegisterFlags(validate.Flags())
	cmd.AddCommand(validate)

	return cmd
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	path := config.ResolvePath(configFile)
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	if path == "" {
		path = "(none)"
	}
	cmd.Printf("config OK (file: %s, auth: %s, sessions: %s, hasher: %s)\n",
		path, cfg.Auth.Type, cfg.Session.Backend, cfg.Hasher.Algorithm)
	return nil
}
