// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/config"
)

// hashPasswordConfig holds configuration for the hash-password command.
type hashPasswordConfig struct {
	verify string
}

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	cfg := &hashPasswordConfig{}

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash a password, or check one against a hash",
		Long: `Print the hash of a password using the configured algorithm. The password
is read from the first line of stdin when not given as an argument.
With --verify, report whether the password matches the given hash instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHashPassword(cmd, args, cfg)
		},
	}

	d := config.Defaults()
	cmd.Flags().String("hasher", d["hasher.algorithm"].(string), "password hash algorithm (bcrypt or argon2id)")
	cmd.Flags().Int("bcrypt-cost", d["hasher.bcrypt_cost"].(int), "bcrypt cost (0 = library default)")
	cmd.Flags().StringVar(&cfg.verify, "verify", "", "hash to check the password against")

	return cmd
}

func runHashPassword(cmd *cobra.Command, args []string, cfg *hashPasswordConfig) error {
	password, err := readPassword(cmd, args)
	if err != nil {
		return err
	}

	settings, err := config.Load(config.ResolvePath(configFile), cmd.Flags())
	if err != nil {
		return err
	}

	if cfg.verify != "" {
		return verifyPassword(cmd, password, cfg.verify)
	}

	hasher, err := auth.NewPasswordHasher(settings.Hasher.Algorithm, settings.Hasher.BcryptCost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}

// verifyPassword checks either algorithm regardless of configuration.
func verifyPassword(cmd *cobra.Command, password, hash string) error {
	hasher, err := auth.NewPasswordHasher(auth.AlgorithmBcrypt, 0)
	if err != nil {
		return err
	}
	ok, err := hasher.Verify(password, hash)
	if err != nil {
		return err
	}
	if !ok {
		return oops.Code("PASSWORD_MISMATCH").Errorf("password does not match hash")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return err
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", oops.Code("INPUT_READ_FAILED").Wrap(err)
		}
		return "", oops.Code("INPUT_READ_FAILED").Errorf("no password given")
	}
	return strings.TrimRight(scanner.Text(), "\r"), nil
}
