// Package request turns a raw application payload into a validated, typed request.
// All untyped access to the payload happens here, once.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-applier/internal/schemas"
	"github.com/jonathan/job-applier/internal/types"
)

// Options tunes request validation
type Options struct {
	// AllowPrivateHosts permits loopback and private-network job URLs
	AllowPrivateHosts bool
	// DefaultSettings is used for any setting the payload omits
	DefaultSettings *types.Settings
}

var allowedBrowsers = map[string]bool{
	types.BrowserChrome:   true,
	types.BrowserChromium: true,
	types.BrowserEdge:     true,
}

var validate = validator.New()

// rawRequest mirrors the wire document with every field left untyped
type rawRequest struct {
	JobURL        json.RawMessage `json:"jobUrl"`
	Resume        json.RawMessage `json:"resume"`
	CustomAnswers json.RawMessage `json:"customAnswers"`
	SelectorMap   json.RawMessage `json:"selectorMap"`
	Settings      json.RawMessage `json:"settings"`
	CoverLetter   json.RawMessage `json:"coverLetter"`
}

// Parse validates a raw payload and returns a typed request.
// Any failure is a *ValidationError whose Message is suitable for the result document.
func Parse(data []byte, opts Options) (*types.ApplicationRequest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Message: MsgEmptyInput}
	}

	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid JSON input: %v", err), Cause: err}
	}

	var jobURL string
	if err := json.Unmarshal(raw.JobURL, &jobURL); err != nil || strings.TrimSpace(jobURL) == "" {
		return nil, &ValidationError{Message: MsgMissingJobURL}
	}

	var resume map[string]any
	if err := json.Unmarshal(raw.Resume, &resume); err != nil || resume == nil {
		return nil, &ValidationError{Message: MsgMissingResume}
	}

	if err := schemas.ValidateRequest(data); err != nil {
		var schemaErr *schemas.ValidationError
		if errors.As(err, &schemaErr) {
			return nil, &ValidationError{Message: "Invalid request: " + schemaErr.First(), Cause: err}
		}
		return nil, &ValidationError{Message: "Invalid request", Cause: err}
	}

	sanitized, err := SanitizeJobURL(jobURL, opts.AllowPrivateHosts)
	if err != nil {
		return nil, &ValidationError{Message: "Invalid jobUrl: " + err.Error(), Cause: err}
	}

	answers, err := parseCustomAnswers(raw.CustomAnswers)
	if err != nil {
		return nil, err
	}

	defaults := types.DefaultSettings()
	if opts.DefaultSettings != nil {
		defaults = *opts.DefaultSettings
	}

	return &types.ApplicationRequest{
		JobURL:        sanitized,
		Resume:        resume,
		CustomAnswers: answers,
		SelectorMap:   parseSelectorMap(raw.SelectorMap),
		Settings:      parseSettings(raw.Settings, defaults),
		CoverLetter:   parseCoverLetter(raw.CoverLetter),
	}, nil
}

// parseCustomAnswers keeps string/string pairs in document order and enforces limits.
// Pairs whose value is not a string are skipped.
func parseCustomAnswers(data json.RawMessage) ([]types.CustomAnswer, error) {
	pairs, ok := decodeOrderedObject(data)
	if !ok {
		return nil, nil
	}

	answers := make([]types.CustomAnswer, 0, len(pairs))
	for _, pair := range pairs {
		var value string
		if err := json.Unmarshal(pair.value, &value); err != nil {
			continue
		}
		answer := types.CustomAnswer{
			Key:   strings.TrimSpace(pair.key),
			Value: strings.TrimSpace(value),
		}
		if answer.Key == "" {
			continue
		}
		if err := validate.Struct(answer); err != nil {
			return nil, &ValidationError{
				Message: fmt.Sprintf("Invalid customAnswers[%s]: %s", answer.Key, describeValidation(err)),
				Cause:   err,
			}
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", strings.ToLower(fe.Field()), fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	default:
		return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}

type rawPair struct {
	key   string
	value json.RawMessage
}

// decodeOrderedObject decodes a JSON object preserving key order.
// Returns ok=false when data is absent or not an object.
func decodeOrderedObject(data json.RawMessage) ([]rawPair, bool) {
	if len(data) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if delim, isDelim := tok.(json.Delim); !isDelim || delim != '{' {
		return nil, false
	}

	var pairs []rawPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		pairs = append(pairs, rawPair{key: key, value: value})
	}
	return pairs, true
}

// parseSelectorMap trims every selector and drops blank ones. The schema admits a
// non-object selectorMap, which yields an empty map.
func parseSelectorMap(data json.RawMessage) map[string][]string {
	result := map[string][]string{}
	var entries map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &entries) != nil {
		return result
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var selectors []string
		if err := json.Unmarshal(entries[key], &selectors); err != nil {
			continue
		}
		cleaned := make([]string, 0, len(selectors))
		for _, sel := range selectors {
			if sel = strings.TrimSpace(sel); sel != "" {
				cleaned = append(cleaned, sel)
			}
		}
		// an emptied key still counts as supplied
		result[key] = cleaned
	}
	return result
}

// parseSettings applies per-field fallbacks instead of rejecting malformed values
func parseSettings(data json.RawMessage, defaults types.Settings) types.Settings {
	settings := defaults
	var fields map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &fields) != nil {
		return normalizeSettings(settings)
	}

	var headless bool
	if json.Unmarshal(fields["headless"], &headless) == nil {
		settings.Headless = headless
	}
	var autoScreens bool
	if json.Unmarshal(fields["autoSaveScreenshots"], &autoScreens) == nil {
		settings.AutoSaveScreenshots = autoScreens
	}
	var timeout float64
	if json.Unmarshal(fields["defaultTimeout"], &timeout) == nil {
		settings.DefaultTimeout = int(timeout)
	}
	var browser string
	if json.Unmarshal(fields["defaultBrowser"], &browser) == nil {
		settings.DefaultBrowser = browser
	}

	return normalizeSettings(settings)
}

func normalizeSettings(s types.Settings) types.Settings {
	if s.DefaultTimeout <= 0 {
		s.DefaultTimeout = types.DefaultTimeoutSeconds
	}
	s.DefaultBrowser = strings.ToLower(strings.TrimSpace(s.DefaultBrowser))
	if !allowedBrowsers[s.DefaultBrowser] {
		s.DefaultBrowser = types.BrowserChrome
	}
	return s
}

func parseCoverLetter(data json.RawMessage) *types.CoverLetter {
	if len(data) == 0 {
		return nil
	}
	var letter types.CoverLetter
	if err := json.Unmarshal(data, &letter); err != nil {
		return nil
	}
	return &letter
}
