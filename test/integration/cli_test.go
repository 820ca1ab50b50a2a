// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"os/exec"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/holoauth/internal/auth/postgres"
)

func runCLI(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "go", append([]string{"run", "."}, args...)...)
	cmd.Dir = "../../cmd/holoauth"
	cmd.Env = append(cmd.Environ(), "DATABASE_URL="+env.connStr, "XDG_CONFIG_HOME="+GinkgoT().TempDir())
	out, err := cmd.CombinedOutput()
	return string(out), err
}

var _ = Describe("CLI against PostgreSQL", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateUsers(ctx, env.pool)
	})

	It("reports an up-to-date schema", func() {
		output, err := runCLI(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)
		Expect(output).To(ContainSubstring("No pending migrations"))

		output, err = runCLI(ctx, "migrate", "version")
		Expect(err).NotTo(HaveOccurred(), "migrate version failed: %s", output)
		Expect(output).To(ContainSubstring("Schema version 1 (clean)"))
	})

	It("dumps users with the email masked", func() {
		users := postgres.NewUserRepository(env.pool)
		_, err := users.AddUser(ctx, "carol@example.com", "hash")
		Expect(err).NotTo(HaveOccurred())

		output, err := runCLI(ctx, "users", "dump")
		Expect(err).NotTo(HaveOccurred(), "users dump failed: %s", output)
		Expect(output).To(ContainSubstring("email=***;"))
		Expect(output).NotTo(ContainSubstring("carol@example.com"))
		Expect(output).To(ContainSubstring("1 user(s)"))
	})
})
