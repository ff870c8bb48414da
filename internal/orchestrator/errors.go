package orchestrator

import (
	"fmt"

	"ledgerseed/internal/client"
)

// GenerationError reports that a required entity set could not be produced
// after retries were exhausted.
type GenerationError struct {
	Kind     client.EntityKind
	ParentID string
	Context  string
	Err      error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generation failed for %s", e.Kind)
	if e.ParentID != "" {
		msg += fmt.Sprintf(" under %s", e.ParentID)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// DependencyError reports that a phase cannot run because a required
// upstream entity set is empty. It skips the current ledger's downstream
// phases, never the whole run.
type DependencyError struct {
	Kind     client.EntityKind // entity kind being generated
	Requires client.EntityKind // upstream kind that is missing
	ParentID string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("cannot generate %s: no %s available under %s", e.Kind, e.Requires, e.ParentID)
}
