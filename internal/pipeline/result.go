package pipeline

import (
	"github.com/jonathan/job-applier/internal/pipeline/steps"
	"github.com/jonathan/job-applier/internal/types"
)

// Completed builds the result of a run that reached the end of the sequence
func Completed(screenshots []string, records []types.StepRecord) *types.ApplicationResult {
	return &types.ApplicationResult{
		Success:     true,
		Error:       nil,
		Screenshots: cloneStrings(screenshots),
		Steps:       cloneRecords(records),
	}
}

// Aborted builds the result of a run stopped by an unrecovered fault.
// The fault's step record is expected to be part of records already.
func Aborted(cause error, screenshots []string, records []types.StepRecord) *types.ApplicationResult {
	msg := cause.Error()
	return &types.ApplicationResult{
		Success:     false,
		Error:       &msg,
		Screenshots: cloneStrings(screenshots),
		Steps:       cloneRecords(records),
	}
}

// Rejected builds the result for a request that failed validation.
// No browser session exists at this point, so there are no screenshots.
func Rejected(message string) *types.ApplicationResult {
	return &types.ApplicationResult{
		Success:     false,
		Error:       &message,
		Screenshots: []string{},
		Steps: []types.StepRecord{
			{Action: steps.ActionValidate, Status: types.StatusError, Message: message},
		},
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRecords(in []types.StepRecord) []types.StepRecord {
	out := make([]types.StepRecord, len(in))
	copy(out, in)
	return out
}
