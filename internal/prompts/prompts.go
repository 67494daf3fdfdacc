// Package prompts holds the LLM prompt templates embedded in the binary. Each
// JSON file maps keys to either a template string or structured data.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var files embed.FS

// entries maps file name to key to raw JSON value, parsed once
var entries = sync.OnceValues(func() (map[string]map[string]json.RawMessage, error) {
	names, err := fs.Glob(files, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]json.RawMessage, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var values map[string]json.RawMessage
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = values
	}
	return out, nil
})

func lookup(file, key string) (json.RawMessage, error) {
	all, err := entries()
	if err != nil {
		return nil, err
	}
	values, ok := all[file]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", file)
	}
	raw, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return raw, nil
}

// Decode unmarshals the value stored under key into v
func Decode(file, key string, v any) error {
	raw, err := lookup(file, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("prompt %s/%s: %w", file, key, err)
	}
	return nil
}

// Render executes the template stored under key with data
func Render(file, key string, data any) (string, error) {
	var text string
	if err := Decode(file, key, &text); err != nil {
		return "", err
	}
	tmpl, err := template.New(key).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("prompt %s/%s: %w", file, key, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("prompt %s/%s: %w", file, key, err)
	}
	return sb.String(), nil
}

// MustRender is Render for templates that ship with the binary
func MustRender(file, key string, data any) string {
	out, err := Render(file, key, data)
	if err != nil {
		panic(err)
	}
	return out
}
