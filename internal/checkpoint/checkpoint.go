// Package checkpoint persists generation progress so a multi-hour run can
// survive a crash. A checkpoint is written only at ledger boundaries, never
// mid-entity-creation, which is what makes every persisted snapshot safe to
// resume from.
package checkpoint

import (
	"time"

	"ledgerseed/internal/config"
	"ledgerseed/internal/state"
)

// Phase names recorded in checkpoint progress.
const (
	PhaseOrganizations = "organizations"
	PhaseLedgers       = "ledgers"
	PhaseCompleted     = "completed"
	PhaseError         = "error"
)

// Progress is the pointer into the per-organization, per-ledger loop.
type Progress struct {
	Phase string `json:"phase"`
	// CurrentOrganizationIndex counts fully completed organizations.
	CurrentOrganizationIndex int `json:"current_organization_index"`
	// CurrentLedgerIndex counts completed ledgers within the in-flight
	// organization.
	CurrentLedgerIndex int      `json:"current_ledger_index"`
	CompletedSteps     []string `json:"completed_steps"`
	FailedSteps        []string `json:"failed_steps,omitempty"`
}

// Checkpoint is one durable snapshot of a run.
type Checkpoint struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	State     state.Snapshot `json:"state"`
	Progress  Progress       `json:"progress"`
	Config    config.Config  `json:"config"`
	Metrics   state.Metrics  `json:"metrics"`
}

// ResumePoint tells the orchestrator where to pick a restored run back up.
type ResumePoint struct {
	// SkipOrganizations is how many leading organizations are fully done.
	SkipOrganizations int
	// SkipLedgers is how many ledgers of the in-flight organization were
	// fully seeded. Ledgers, not partial ledger contents, are the unit of
	// resumability.
	SkipLedgers int
	// Phase is the phase recorded at save time.
	Phase string
}
