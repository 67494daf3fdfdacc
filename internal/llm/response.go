package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject means a reply held nothing that looks like a JSON object
var ErrNoJSONObject = errors.New("no JSON object in response")

// fencePattern matches markdown code fences with an optional language tag
var fencePattern = regexp.MustCompile("```[A-Za-z]*\\n?")

// ExtractJSONObject returns the outermost {...} span of a model reply after
// dropping code fences. Models add fences and prose even in JSON mode.
func ExtractJSONObject(text string) (string, error) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return cleaned[start : end+1], nil
}
