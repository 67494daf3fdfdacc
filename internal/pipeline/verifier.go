package pipeline

import (
	"context"
	"strings"

	"github.com/jonathan/job-applier/internal/browser"
)

// ConfirmationPhrases are matched against lower-cased page text after submission
var ConfirmationPhrases = []string{
	"thank you",
	"application received",
	"application submitted",
	"successfully submitted",
	"we received your application",
	"application complete",
	"submission confirmed",
}

// IsConfirmation reports whether text contains a confirmation phrase
func IsConfirmation(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range ConfirmationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// PageReader reads rendered text from the current page
type PageReader interface {
	ReadText(ctx context.Context, target string) (string, error)
}

// VerifySubmission classifies the current page. A read fault counts as unconfirmed.
func VerifySubmission(ctx context.Context, page PageReader) bool {
	text, err := page.ReadText(ctx, browser.PageTarget)
	if err != nil {
		return false
	}
	return IsConfirmation(text)
}
