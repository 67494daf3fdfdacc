package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so commands can run repeatedly
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the CLI in-process with the given stdin and arguments
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// isolateEnv clears the environment variables the commands read
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DATABASE_URL", "APPLY_AGENT_DATABASE_URL",
		"GEMINI_API_KEY", "APPLY_AGENT_API_KEY",
		"JWT_SECRET", "APPLY_AGENT_JWT_SECRET",
		"JWT_EXPIRATION_HOURS", "APPLY_AGENT_JWT_EXPIRATION_HOURS",
		"APPLY_AGENT_WORK_DIR", "APPLY_AGENT_LOG_LEVEL", "APPLY_AGENT_LOG_FORMAT",
		"APPLY_AGENT_ALLOW_PRIVATE_HOSTS",
	} {
		t.Setenv(name, "")
	}
}
