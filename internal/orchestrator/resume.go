package orchestrator

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"ledgerseed/internal/checkpoint"
	"ledgerseed/internal/client"
	"ledgerseed/internal/state"
)

// resumeFromCheckpoint restores state from a persisted checkpoint and picks
// the per-organization, per-ledger loop back up. Completed organizations
// are never redone; the in-flight organization skips its already-seeded
// ledgers. Entity counts are topped up rather than recreated, so resuming
// is idempotent even when the checkpoint trails the platform's truth, where
// the conflict lookups absorb the difference.
func (o *Orchestrator) resumeFromCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) (state.Metrics, error) {
	rp := o.checkpoints.DetermineResumePoint(cp)
	o.logger.Info("resuming from checkpoint",
		zap.String("checkpoint_id", cp.ID),
		zap.String("phase", rp.Phase),
		zap.Int("skip_organizations", rp.SkipOrganizations),
		zap.Int("skip_ledgers", rp.SkipLedgers))

	// Keep the checkpoint lineage: further saves extend the same run.
	o.runID = cp.ID
	o.state.Restore(cp.State, cp.Metrics)
	o.completedSteps = slices.Clone(cp.Progress.CompletedSteps)
	o.failedSteps = slices.Clone(cp.Progress.FailedSteps)
	o.orgIndex = rp.SkipOrganizations
	o.ledgerIndex = rp.SkipLedgers

	// Top the organization set up in case the interruption happened during
	// the organization phase itself.
	if err := o.generateOrganizations(ctx); err != nil {
		return o.state.Metrics(), err
	}
	orgIDs := o.state.OrganizationIDs()
	if len(orgIDs) == 0 {
		return o.state.Metrics(), &GenerationError{
			Kind:    client.KindOrganization,
			Context: "no organizations available after resume",
		}
	}
	return o.seedOrganizations(ctx, orgIDs, rp.SkipOrganizations, rp.SkipLedgers)
}
