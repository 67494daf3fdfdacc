package types

// StepStatus is the outcome of a single step record or progress event
type StepStatus string

// Step status values
const (
	StatusOK    StepStatus = "ok"
	StatusError StepStatus = "error"
)

// TotalSteps is the fixed number of pipeline steps announced in progress events
const TotalSteps = 10

// StepRecord describes the outcome of one logical unit of work.
// Records are append-only and never mutated after they are appended.
type StepRecord struct {
	Action  string     `json:"action"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// ProgressEvent is a streamed, fire-and-forget notification of pipeline progress.
// It is never part of the final result.
type ProgressEvent struct {
	Type       string     `json:"type"`
	Action     string     `json:"action"`
	Step       int        `json:"step"`
	TotalSteps int        `json:"totalSteps"`
	Status     StepStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
}

// ApplicationResult is the sole authoritative output of a run
type ApplicationResult struct {
	Success     bool         `json:"success"`
	Error       *string      `json:"error"`
	Screenshots []string     `json:"screenshots"`
	Steps       []StepRecord `json:"steps"`
}

// ErrorMessage returns the error text or an empty string
func (r *ApplicationResult) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// CountByStatus returns how many step records carry the given status
func (r *ApplicationResult) CountByStatus(status StepStatus) int {
	if r == nil {
		return 0
	}
	count := 0
	for _, step := range r.Steps {
		if step.Status == status {
			count++
		}
	}
	return count
}
