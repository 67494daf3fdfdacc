// Package types provides type definitions for structured data used throughout the job-applier system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// Supported browser identifiers for Settings.DefaultBrowser
const (
	BrowserChrome   = "chrome"
	BrowserChromium = "chromium"
	BrowserEdge     = "edge"
)

// DefaultTimeoutSeconds is used when a request carries no usable defaultTimeout
const DefaultTimeoutSeconds = 30

// ApplicationRequest is the validated, strongly typed form of an application payload.
// It is produced once by the request package and never mutated afterwards.
type ApplicationRequest struct {
	JobURL        string              `json:"jobUrl"`
	Resume        map[string]any      `json:"resume"`
	CustomAnswers []CustomAnswer      `json:"customAnswers"`
	SelectorMap   map[string][]string `json:"selectorMap"`
	Settings      Settings            `json:"settings"`
	CoverLetter   *CoverLetter        `json:"coverLetter,omitempty"`
}

// CustomAnswer is one question/answer pair addressed to a form control by name or id.
// Pairs keep the order in which they appeared in the input document.
type CustomAnswer struct {
	Key   string `json:"key" validate:"required,max=120"`
	Value string `json:"value" validate:"max=2000"`
}

// Settings controls browser session behaviour
type Settings struct {
	Headless            bool   `json:"headless"`
	DefaultTimeout      int    `json:"defaultTimeout"`
	AutoSaveScreenshots bool   `json:"autoSaveScreenshots"`
	DefaultBrowser      string `json:"defaultBrowser"`
}

// DefaultSettings returns the settings applied when a request omits them
func DefaultSettings() Settings {
	return Settings{
		Headless:            true,
		DefaultTimeout:      DefaultTimeoutSeconds,
		AutoSaveScreenshots: true,
		DefaultBrowser:      BrowserChrome,
	}
}

// CoverLetter carries the optional cover letter sections
type CoverLetter struct {
	Content CoverLetterContent `json:"content"`
}

// CoverLetterContent holds the three cover letter sections
type CoverLetterContent struct {
	Introduction string `json:"introduction"`
	Body         string `json:"body"`
	Conclusion   string `json:"conclusion"`
}

// CandidateFieldSet holds the contact values resolved from a resume.
// An empty string means the value is unavailable and the field should be skipped.
type CandidateFieldSet struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// FormField describes one form control found by DOM introspection
type FormField struct {
	Tag   string `json:"tag"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Text joins the non-blank sections, each trimmed, with a blank line between them
func (c *CoverLetter) Text() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, section := range []string{c.Content.Introduction, c.Content.Body, c.Content.Conclusion} {
		if trimmed := strings.TrimSpace(section); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}
