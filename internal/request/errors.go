package request

// Validation fault messages surfaced verbatim in the failure result
const (
	MsgEmptyInput    = "No JSON input received"
	MsgMissingJobURL = "Missing jobUrl"
	MsgMissingResume = "Missing resume payload"
)

// ValidationError is a fatal, pre-session fault describing why a request was rejected.
// Message is reported verbatim in the result document.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
