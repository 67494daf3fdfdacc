// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/job-applier/internal/db"
	"github.com/jonathan/job-applier/internal/fetch"
	"github.com/jonathan/job-applier/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// PrintRequest outputs a summary of a validated application request.
// Resume and answer values are never printed.
func (p *Printer) PrintRequest(req *types.ApplicationRequest) {
	if req == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job URL:   %s\n", req.JobURL))
	sb.WriteString(fmt.Sprintf("Platform:  %s\n", fetch.DetectPlatform(req.JobURL)))
	sb.WriteString(fmt.Sprintf("Browser:   %s (headless %s)\n", req.Settings.DefaultBrowser, onOff(req.Settings.Headless)))
	sb.WriteString(fmt.Sprintf("Timeout:   %ds\n", req.Settings.DefaultTimeout))
	sb.WriteString(fmt.Sprintf("Snapshots: %s\n", onOff(req.Settings.AutoSaveScreenshots)))
	sb.WriteString(fmt.Sprintf("Cover letter: %s\n", onOff(req.CoverLetter.Text() != "")))

	if len(req.CustomAnswers) > 0 {
		sb.WriteString(fmt.Sprintf("\nCustom answers (%d):\n", len(req.CustomAnswers)))
		count := min(len(req.CustomAnswers), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", req.CustomAnswers[i].Key))
		}
		if len(req.CustomAnswers) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(req.CustomAnswers)-maxItemsToShow))
		}
	}

	p.printBox("APPLICATION REQUEST", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSelectorMap outputs selector chains by field, sorted by field name.
func (p *Printer) PrintSelectorMap(title string, selectorMap map[string][]string) {
	if len(selectorMap) == 0 {
		return
	}

	fields := make([]string, 0, len(selectorMap))
	for field := range selectorMap {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		chain := selectorMap[field]
		if len(chain) == 0 {
			sb.WriteString(fmt.Sprintf("%s: (none)\n", field))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", field, chain[0]))
		for _, selector := range chain[1:] {
			sb.WriteString(fmt.Sprintf("  then %s\n", selector))
		}
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResult outputs the step trace of a finished run.
func (p *Printer) PrintResult(result *types.ApplicationResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	status := "✅ SUCCESS"
	if !result.Success {
		status = "❌ FAILED"
	}
	sb.WriteString(status + "\n")
	if msg := result.ErrorMessage(); msg != "" {
		sb.WriteString(fmt.Sprintf("Error: %s\n", msg))
	}
	sb.WriteString(fmt.Sprintf("Steps: %d ok, %d failed\n\n",
		result.CountByStatus(types.StatusOK), result.CountByStatus(types.StatusError)))

	for _, step := range result.Steps {
		mark := "✓"
		if step.Status == types.StatusError {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, step.Action)
		if step.Message != "" {
			line += ": " + step.Message
		}
		sb.WriteString(line + "\n")
	}

	if len(result.Screenshots) > 0 {
		sb.WriteString(fmt.Sprintf("\nScreenshots (%d):\n", len(result.Screenshots)))
		for _, shot := range result.Screenshots {
			sb.WriteString(fmt.Sprintf("  %s\n", shot))
		}
	}

	p.printBox("APPLICATION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRuns outputs a table of stored runs, newest first as given.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRuns(runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No runs recorded.")
		return
	}

	var sb strings.Builder
	for i, run := range runs {
		sb.WriteString(fmt.Sprintf("%s  %-8s %3d%%\n", run.ID, run.Status, run.Progress))
		if run.JobURL != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", run.JobURL))
		}
		sb.WriteString(fmt.Sprintf("  started %s", run.CreatedAt.Format("2006-01-02 15:04:05")))
		if run.Error != nil {
			sb.WriteString(fmt.Sprintf("\n  error: %s", *run.Error))
		}
		if i < len(runs)-1 {
			sb.WriteString("\n\n")
		}
	}

	p.printBox(fmt.Sprintf("RECENT RUNS (%d)", len(runs)), sb.String())
}
