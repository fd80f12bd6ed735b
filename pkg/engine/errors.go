package engine

import "fmt"

// NoActionsFoundError is returned when discovery found no action files.
type NoActionsFoundError struct {
	Dir string
}

func (e *NoActionsFoundError) Error() string {
	return fmt.Sprintf("no command action files found to process in directory %s", e.Dir)
}

// ConditionalNotSatisfiedError aborts a run whose prerequisite does not
// hold. Exactly one of ArtifactID or Expression is set.
type ConditionalNotSatisfiedError struct {
	Path       string
	ArtifactID string
	Expression string
}

func (e *ConditionalNotSatisfiedError) Error() string {
	if e.ArtifactID != "" {
		return fmt.Sprintf("conditional on artifact-id not satisfied in %s: expected artifact-id %s but it was not found", e.Path, e.ArtifactID)
	}
	return fmt.Sprintf("conditional not satisfied in %s: expression %q is false", e.Path, e.Expression)
}
