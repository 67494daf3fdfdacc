package llm

import (
	"fmt"
	"strings"
)

// PromptKey is one key of the object a prompt asks for
type PromptKey struct {
	Name  string
	Shape string // JSON shape hint, e.g. ["string"]
	Hint  string
}

// ObjectPrompt asks the model for a single JSON object with known keys
type ObjectPrompt struct {
	Task  string
	Keys  []PromptKey
	Rules []string
	// InputLabel names the material appended after the instructions
	InputLabel string
}

// Render builds the prompt text around input
func (p ObjectPrompt) Render(input string) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(p.Task))
	sb.WriteString("\n\nReply with one JSON object of this shape:\n{\n")
	for _, key := range p.Keys {
		shape := key.Shape
		if shape == "" {
			shape = `"string"`
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", key.Name, shape))
		if key.Hint != "" {
			sb.WriteString(" // " + key.Hint)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\nRules:\n")
	for _, rule := range p.Rules {
		sb.WriteString("- " + rule + "\n")
	}
	sb.WriteString("- Leave out any key the input gives no evidence for.\n")
	sb.WriteString("- Reply with the JSON object only: no markdown, no commentary.\n\n")

	label := p.InputLabel
	if label == "" {
		label = "Input"
	}
	sb.WriteString(label + ":\n<<<\n")
	sb.WriteString(input)
	sb.WriteString("\n>>>\n")

	return sb.String()
}
