// Package selectors builds the ordered selector chains tried for each logical form field.
package selectors

import "fmt"

// Field identifies a logical form field. Values double as selectorMap keys.
type Field string

// Logical fields with built-in fallbacks
const (
	FieldFullName    Field = "fullName"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldResume      Field = "resume"
	FieldCoverLetter Field = "coverLetter"
	FieldSubmit      Field = "submit"
)

// Fields lists every logical field in pipeline order
var Fields = []Field{FieldFullName, FieldEmail, FieldPhone, FieldResume, FieldCoverLetter, FieldSubmit}

// Chain is an ordered list of element selectors for one logical field.
// Earlier entries take precedence; the first successful interaction wins.
type Chain []string

// fallbacks are static selectors for common form conventions
var fallbacks = map[Field]Chain{
	FieldFullName: {
		"input[name='fullName']",
		"input[name='name']",
		"input[aria-label='Full name']",
		"input#full-name",
		"input[name='first_name']",
		"input[name='firstName']",
	},
	FieldEmail: {
		"input[type='email']",
		"input[name='email']",
		"input[aria-label='Email']",
		"input#email",
	},
	FieldPhone: {
		"input[type='tel']",
		"input[name='phone']",
		"input[aria-label='Phone']",
		"input#phone",
		"input[name='phoneNumber']",
	},
	FieldResume: {
		"input[type='file']",
		"input[name='resume']",
		"input[name='cv']",
		"input[accept='.pdf,.doc,.docx']",
	},
	FieldCoverLetter: {
		"textarea[name='cover_letter']",
		"textarea#cover-letter",
		"textarea[name='coverLetter']",
		"textarea[aria-label='Cover letter']",
	},
	FieldSubmit: {
		"button[type='submit']",
		"input[type='submit']",
		"button[type='button'][value='Submit']",
		"button.submit-btn",
		"button#submit",
	},
}

// Fallbacks returns a copy of the built-in fallback chain for a field
func Fallbacks(field Field) Chain {
	return append(Chain(nil), fallbacks[field]...)
}

// Table maps each logical field to its chain for one run.
// It is derived from the request and never shared between runs.
type Table struct {
	chains map[Field]Chain
}

// NewTable builds the chains for every logical field: externally supplied selectors
// from selectorMap first, built-in fallbacks after them.
func NewTable(selectorMap map[string][]string) *Table {
	t := &Table{chains: make(map[Field]Chain, len(Fields))}
	for _, field := range Fields {
		external := selectorMap[string(field)]
		chain := make(Chain, 0, len(external)+len(fallbacks[field]))
		chain = append(chain, external...)
		chain = append(chain, fallbacks[field]...)
		t.chains[field] = chain
	}
	return t
}

// Chain returns the chain for a field; unknown fields yield an empty chain
func (t *Table) Chain(field Field) Chain {
	return append(Chain(nil), t.chains[field]...)
}

// CustomTextChain returns the text-control chain for a custom answer key
func CustomTextChain(key string) Chain {
	return Chain{
		fmt.Sprintf("textarea[name='%s']", key),
		fmt.Sprintf("input[name='%s']", key),
		fmt.Sprintf("textarea[id='%s']", key),
		fmt.Sprintf("input[id='%s']", key),
	}
}

// CustomSelectChain returns the dropdown chain for a custom answer key
func CustomSelectChain(key string) Chain {
	return Chain{
		fmt.Sprintf("select[name='%s']", key),
		fmt.Sprintf("select[id='%s']", key),
	}
}
