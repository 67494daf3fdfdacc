package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-applier/internal/observability"
	"github.com/jonathan/job-applier/internal/pipeline"
	"github.com/jonathan/job-applier/internal/request"
	"github.com/jonathan/job-applier/internal/runner"
)

var validateCommand = &cobra.Command{
	Use:   "validate",
	Short: "Validate an application request without running it",
	Long: `Checks an application request read from --input or stdin. A valid request prints a summary
of what a run would use; an invalid one prints the result document a run would return.`,
	RunE: runValidateCmd,
}

var (
	validateInput   string
	validateVerbose bool
)

func init() {
	validateCommand.Flags().StringVarP(&validateInput, "input", "i", "", "Path to the request JSON file (default: stdin)")
	validateCommand.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "Print a readable summary to stderr")

	rootCmd.AddCommand(validateCommand)
}

func runValidateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := readInput(cmd.InOrStdin(), validateInput)
	if err != nil {
		return err
	}

	req, err := request.Parse(data, requestOptions(cfg))
	if err != nil {
		var validationErr *request.ValidationError
		if !errors.As(err, &validationErr) {
			return err
		}
		if writeErr := writeJSON(cmd.OutOrStdout(), pipeline.Rejected(validationErr.Message)); writeErr != nil {
			return writeErr
		}
		return errRunFailed
	}

	if validateVerbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintRequest(req)
	}
	return writeJSON(cmd.OutOrStdout(), runner.Summarize(req))
}
