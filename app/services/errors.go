package services

import "errors"

// Workflow and input errors, mapped to HTTP codes by the controllers
var (
	ErrInvalidStep             = errors.New("invalid step number")
	ErrPreviousStepsIncomplete = errors.New("complete previous steps first")
	ErrStepAlreadyCompleted    = errors.New("step already completed")
	ErrNoValidSuggestion       = errors.New("no valid address suggestion")
	ErrInvalidPayload          = errors.New("invalid step payload")
	ErrWorkflowComplete        = errors.New("validation workflow already complete")
	ErrRunNotFound             = errors.New("preprocessing run not found")
	ErrInvalidGazetteerData    = errors.New("invalid gazetteer data")
)
