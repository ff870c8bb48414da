// Package orchestrator drives the full generation run: it walks the fixed
// phase sequence (organizations, ledgers, assets, portfolios/segments,
// accounts, transactions), routes every remote call through retry and a
// per-kind circuit breaker, records results in the state manager, and
// checkpoints at ledger boundaries so an interrupted run can resume.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledgerseed/internal/breaker"
	"ledgerseed/internal/checkpoint"
	"ledgerseed/internal/client"
	"ledgerseed/internal/config"
	"ledgerseed/internal/generator"
	"ledgerseed/internal/retry"
	"ledgerseed/internal/state"
)

// Orchestrator runs one generation campaign against the platform.
type Orchestrator struct {
	cfg         config.Config
	api         client.API
	gen         *generator.Generator
	state       *state.Manager
	checkpoints *checkpoint.Manager
	retry       *retry.Executor
	logger      *zap.Logger

	runID string

	breakerMu sync.Mutex
	breakers  map[client.EntityKind]*breaker.Breaker

	// Progress bookkeeping. The outer organization/ledger loops are
	// sequential, so plain fields suffice.
	orgIndex       int
	ledgerIndex    int
	completedSteps []string
	failedSteps    []string
}

// New wires an orchestrator from its collaborators. The retry executor is
// built here so every phase shares one policy and the global retry counter.
func New(cfg config.Config, api client.API, gen *generator.Generator, st *state.Manager, cps *checkpoint.Manager, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	initial, max := cfg.Retry.Backoffs()
	o := &Orchestrator{
		cfg:         cfg,
		api:         api,
		gen:         gen,
		state:       st,
		checkpoints: cps,
		logger:      logger,
		runID:       uuid.NewString()[:8],
		breakers:    make(map[client.EntityKind]*breaker.Breaker),
	}
	o.retry = retry.New(retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     max,
		Retryable:      client.IsRetryable,
		OnRetry:        func(int, error) { st.IncrementRetries() },
	}, logger)
	return o
}

// Run executes the campaign. When a resumable checkpoint exists the run
// picks up from it; otherwise a fresh generation starts. On any failure an
// error checkpoint is saved before the error propagates, so a rerun resumes
// near the failure point. The returned metrics are valid even on error.
func (o *Orchestrator) Run(ctx context.Context) (metrics state.Metrics, err error) {
	defer func() {
		if err != nil {
			o.saveErrorCheckpoint()
			metrics = o.state.Metrics()
		}
	}()

	cp, cpErr := o.checkpoints.LoadLatest()
	if cpErr != nil {
		o.logger.Warn("could not load latest checkpoint, starting fresh", zap.Error(cpErr))
		cp = nil
	}
	if cp != nil && cp.Progress.Phase != checkpoint.PhaseCompleted {
		return o.resumeFromCheckpoint(ctx, cp)
	}
	return o.startNewGeneration(ctx)
}

// startNewGeneration resets state and runs the full phase sequence.
func (o *Orchestrator) startNewGeneration(ctx context.Context) (state.Metrics, error) {
	o.logger.Info("starting new generation",
		zap.String("run_id", o.runID),
		zap.String("volume", string(o.cfg.Volume)),
		zap.Int("organizations", o.cfg.Counts.Organizations))

	o.state.Reset()

	if err := o.generateOrganizations(ctx); err != nil {
		return o.state.Metrics(), err
	}
	orgIDs := o.state.OrganizationIDs()
	if len(orgIDs) == 0 {
		return o.state.Metrics(), &GenerationError{
			Kind:    client.KindOrganization,
			Context: "no organizations created",
		}
	}
	return o.seedOrganizations(ctx, orgIDs, 0, 0)
}

// seedOrganizations walks organizations sequentially, seeding each one's
// ledgers and checkpointing after every completed ledger. A structural
// failure in one organization skips that branch only; siblings proceed.
func (o *Orchestrator) seedOrganizations(ctx context.Context, orgIDs []string, startOrg, skipLedgersFirst int) (state.Metrics, error) {
	for i := startOrg; i < len(orgIDs); i++ {
		if err := ctx.Err(); err != nil {
			return o.state.Metrics(), err
		}
		o.orgIndex = i
		o.ledgerIndex = 0

		skipLedgers := 0
		if i == startOrg {
			skipLedgers = skipLedgersFirst
		}
		if err := o.seedOrganization(ctx, orgIDs[i], i, skipLedgers); err != nil {
			return o.state.Metrics(), err
		}
	}
	return o.completeRun()
}

// seedOrganization creates an organization's ledgers and seeds each one.
// Returns an error only for conditions that must abort the run (context
// cancellation, checkpoint persistence failure).
func (o *Orchestrator) seedOrganization(ctx context.Context, orgID string, orgIndex, skipLedgers int) error {
	log := o.logger.With(zap.String("organization_id", orgID), zap.Int("organization_index", orgIndex))

	if err := o.generateLedgers(ctx, orgID); err != nil {
		return err
	}
	ledgerIDs := o.state.IDs(client.KindLedger, orgID)
	if len(ledgerIDs) == 0 {
		// Zero ledgers aborts this organization's branch only.
		o.state.TrackGenerationError(client.KindLedger, orgID,
			errors.New("no ledgers created"), "ledger generation produced nothing")
		o.recordFailedStep(fmt.Sprintf("organization[%d]/ledgers", orgIndex))
		log.Error("no ledgers created, skipping organization")
		return nil
	}

	for j := skipLedgers; j < len(ledgerIDs); j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.ledgerIndex = j

		if err := o.seedLedger(ctx, orgID, ledgerIDs[j], orgIndex, j); err != nil {
			return err
		}
		o.recordCompletedStep(fmt.Sprintf("organization[%d]/ledger[%d]", orgIndex, j))
		if err := o.saveCheckpoint(checkpoint.PhaseLedgers, orgIndex, j+1); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	log.Info("organization seeded", zap.Int("ledgers", len(ledgerIDs)))
	return nil
}

// completeRun stamps the metrics, persists a final checkpoint, applies the
// retention policy, and logs the performance summary.
func (o *Orchestrator) completeRun() (state.Metrics, error) {
	metrics := o.state.CompleteGeneration()

	orgCount := len(o.state.OrganizationIDs())
	if err := o.saveCheckpoint(checkpoint.PhaseCompleted, orgCount, 0); err != nil {
		o.logger.Warn("could not save final checkpoint", zap.Error(err))
	}
	if _, err := o.checkpoints.CleanupOld(o.cfg.CheckpointKeep); err != nil {
		o.logger.Warn("checkpoint cleanup failed", zap.Error(err))
	}

	o.logReport(metrics)
	return metrics, nil
}

// CreateOutcome is the result of an idempotent create: either a fresh
// entity or a pre-existing one recovered by conflict lookup.
type CreateOutcome struct {
	Ref    client.EntityRef
	Reused bool
}

// ensureCreated performs one entity creation through retry and the kind's
// circuit breaker. Conflicts resolve via lookup and count as success;
// client errors fail fast; neither trips the breaker. Transient failures
// retry with backoff and, after exhaustion, surface the last error.
func (o *Orchestrator) ensureCreated(ctx context.Context, kind client.EntityKind,
	create, lookup func(context.Context) (client.EntityRef, error)) (CreateOutcome, error) {

	br := o.breakerFor(kind)
	var ref client.EntityRef
	var softErr error

	err := o.retry.Do(ctx, string(kind), func(ctx context.Context) error {
		return br.Execute(ctx, func(ctx context.Context) error {
			r, err := create(ctx)
			if err != nil {
				if client.IsConflict(err) || client.IsClientError(err) {
					// Request-shaped outcomes are not dependency failures;
					// they must not open the circuit or trigger retry.
					softErr = err
					return nil
				}
				return err
			}
			softErr = nil
			ref = r
			return nil
		})
	})
	if err != nil {
		return CreateOutcome{}, err
	}
	if softErr == nil {
		return CreateOutcome{Ref: ref}, nil
	}

	if client.IsConflict(softErr) {
		if lookup == nil {
			// Nothing to recover by; the entity exists remotely, which is
			// all a seeding run needs.
			return CreateOutcome{Reused: true}, nil
		}
		existing, lerr := lookup(ctx)
		if lerr != nil {
			return CreateOutcome{}, fmt.Errorf("conflict lookup for %s: %w", kind, lerr)
		}
		return CreateOutcome{Ref: existing, Reused: true}, nil
	}
	return CreateOutcome{}, softErr
}

// breakerFor returns the circuit breaker guarding one operation class,
// creating it on first use.
func (o *Orchestrator) breakerFor(kind client.EntityKind) *breaker.Breaker {
	o.breakerMu.Lock()
	defer o.breakerMu.Unlock()

	if b, ok := o.breakers[kind]; ok {
		return b
	}
	recovery, monitoring := o.cfg.Breaker.Timeouts()
	b := breaker.New(string(kind), breaker.Config{
		FailureThreshold: o.cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  recovery,
		MonitoringPeriod: monitoring,
		MinimumRequests:  o.cfg.Breaker.MinimumRequests,
		SuccessThreshold: o.cfg.Breaker.SuccessThreshold,
	}, o.logger)
	o.breakers[kind] = b
	return b
}

// BreakerStats exposes the per-kind breaker counters for reporting.
func (o *Orchestrator) BreakerStats() map[client.EntityKind]breaker.Stats {
	o.breakerMu.Lock()
	defer o.breakerMu.Unlock()

	out := make(map[client.EntityKind]breaker.Stats, len(o.breakers))
	for kind, b := range o.breakers {
		out[kind] = b.Stats()
	}
	return out
}

func (o *Orchestrator) recordCompletedStep(step string) {
	o.completedSteps = append(o.completedSteps, step)
}

func (o *Orchestrator) recordFailedStep(step string) {
	o.failedSteps = append(o.failedSteps, step)
}

// saveCheckpoint persists a snapshot at a ledger or phase boundary.
func (o *Orchestrator) saveCheckpoint(phase string, orgIndex, ledgerIndex int) error {
	cp := &checkpoint.Checkpoint{
		ID:        o.runID,
		Timestamp: time.Now(),
		State:     o.state.Snapshot(),
		Progress: checkpoint.Progress{
			Phase:                    phase,
			CurrentOrganizationIndex: orgIndex,
			CurrentLedgerIndex:       ledgerIndex,
			CompletedSteps:           slices.Clone(o.completedSteps),
			FailedSteps:              slices.Clone(o.failedSteps),
		},
		Config:  o.cfg,
		Metrics: o.state.Metrics(),
	}
	_, err := o.checkpoints.Save(cp)
	return err
}

// saveErrorCheckpoint preserves progress when the run is about to fail, so
// the next invocation resumes near the failure point. Best effort: a
// failure here is logged, not propagated over the original error.
func (o *Orchestrator) saveErrorCheckpoint() {
	if err := o.saveCheckpoint(checkpoint.PhaseError, o.orgIndex, o.ledgerIndex); err != nil {
		o.logger.Error("could not save error checkpoint", zap.Error(err))
	}
}
