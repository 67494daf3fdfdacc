// Package steps defines the fixed step sequence of an application run and the
// action vocabulary used in step records.
package steps

import "fmt"

// Step phases
const (
	PhaseSession = "session"
	PhaseFill    = "fill"
	PhaseSubmit  = "submit"
)

// Step names, in execution order
const (
	Init          = "init"
	Navigate      = "navigate"
	DetectFields  = "detect_fields"
	FillName      = "fill_name"
	FillEmail     = "fill_email"
	FillPhone     = "fill_phone"
	UploadResume  = "upload_resume"
	CustomAnswers = "custom_answers"
	Submit        = "submit"
	Verify        = "verify"
)

// Record-only actions that are not steps of their own
const (
	ActionURLVerify   = "url_verify"
	ActionScreenshot  = "screenshot"
	ActionCoverLetter = "fill_cover_letter"
	ActionAutomation  = "automation"
	ActionCleanup     = "cleanup"
	ActionValidate    = "validate"
)

// Terminal progress labels
const (
	LabelComplete = "Complete"
	LabelError    = "Error"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Index int
	Name  string
	Phase string
	// Label is the progress event action announcing the step
	Label string
}

// Sequence is the fixed ordered list of steps
var Sequence = []StepDefinition{
	{Index: 1, Name: Init, Phase: PhaseSession, Label: "Initializing browser"},
	{Index: 2, Name: Navigate, Phase: PhaseSession, Label: "Navigating to job page"},
	{Index: 3, Name: DetectFields, Phase: PhaseFill, Label: "Detecting form fields"},
	{Index: 4, Name: FillName, Phase: PhaseFill, Label: "Filling name field"},
	{Index: 5, Name: FillEmail, Phase: PhaseFill, Label: "Filling email field"},
	{Index: 6, Name: FillPhone, Phase: PhaseFill, Label: "Filling phone field"},
	{Index: 7, Name: UploadResume, Phase: PhaseFill, Label: "Uploading resume"},
	{Index: 8, Name: CustomAnswers, Phase: PhaseFill, Label: "Filling custom fields"},
	{Index: 9, Name: Submit, Phase: PhaseSubmit, Label: "Submitting application"},
	{Index: 10, Name: Verify, Phase: PhaseSubmit, Label: "Verifying submission"},
}

// StepRegistry indexes Sequence by name
var StepRegistry = func() map[string]StepDefinition {
	m := make(map[string]StepDefinition, len(Sequence))
	for _, def := range Sequence {
		m[def.Name] = def
	}
	return m
}()

// Lookup returns the definition for a step name
func Lookup(name string) (StepDefinition, error) {
	def, ok := StepRegistry[name]
	if !ok {
		return StepDefinition{}, fmt.Errorf("unknown step: %s", name)
	}
	return def, nil
}

// MustLookup is Lookup for names known at compile time
func MustLookup(name string) StepDefinition {
	def, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return def
}

// FillAction is the record action for a custom answer typed into a text control
func FillAction(key string) string { return "fill_" + key }

// SelectAction is the record action for a custom answer chosen from a dropdown
func SelectAction(key string) string { return "select_" + key }
