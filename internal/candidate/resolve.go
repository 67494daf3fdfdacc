// Package candidate resolves contact-field values from an unstructured resume document.
package candidate

import (
	"strings"

	"github.com/jonathan/job-applier/internal/types"
)

// personalInfoKey is the resume section holding contact details
const personalInfoKey = "personalInfo"

// Alias lists per logical field, in priority order
var (
	FullNameAliases = []string{"fullName", "name", "full_name", "firstName"}
	EmailAliases    = []string{"email", "emailAddress"}
	PhoneAliases    = []string{"phone", "phoneNumber", "mobile"}
)

// Resolve extracts the candidate contact fields from a resume document.
// For each field the first alias holding a non-blank string wins; values are never merged.
func Resolve(resume map[string]any) types.CandidateFieldSet {
	info, _ := resume[personalInfoKey].(map[string]any)

	return types.CandidateFieldSet{
		FullName: FirstValue(info, FullNameAliases),
		Email:    FirstValue(info, EmailAliases),
		Phone:    FirstValue(info, PhoneAliases),
	}
}

// FirstValue returns the trimmed value of the first alias present as a non-blank string,
// or an empty string if none match.
func FirstValue(section map[string]any, aliases []string) string {
	for _, key := range aliases {
		value, ok := section[key].(string)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
