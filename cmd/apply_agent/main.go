// Package main provides the apply_agent CLI: run job applications from a JSON
// request, infer selectors for a job page, and serve the HTTP API.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errRunFailed marks a command whose result document already went to stdout
// but whose run did not complete; it exits non-zero without another message.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "apply_agent",
	Short: "Job application automation agent",
	Long: `apply_agent fills and submits a job application form in a real browser from a JSON request,
reporting a step-by-step result document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (environment variables override its values)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
