package orchestrator_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ledgerseed/internal/checkpoint"
	"ledgerseed/internal/client"
	"ledgerseed/internal/config"
	"ledgerseed/internal/generator"
	"ledgerseed/internal/orchestrator"
	"ledgerseed/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI is an in-memory platform. It enforces the same uniqueness rules
// the real services do: creating an entity whose key already exists under
// the same parent returns a conflict, recoverable through the List methods.
type fakeAPI struct {
	mu     sync.Mutex
	nextID int
	refs   map[client.EntityKind]map[string][]client.EntityRef

	// hook runs before every create, under the lock. Used to trigger
	// cancellation at a precise point.
	hook func(kind client.EntityKind, parentID string)
	// failOn, when set, rejects matching creates.
	failOn func(kind client.EntityKind, parentID string) error
}

func newFakeAPI() *fakeAPI {
	refs := make(map[client.EntityKind]map[string][]client.EntityRef)
	for _, kind := range client.Kinds() {
		refs[kind] = make(map[string][]client.EntityRef)
	}
	return &fakeAPI{refs: refs}
}

func (f *fakeAPI) create(kind client.EntityKind, parentID string, ref client.EntityRef, dup func(client.EntityRef) bool) (client.EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hook != nil {
		f.hook(kind, parentID)
	}
	if f.failOn != nil {
		if err := f.failOn(kind, parentID); err != nil {
			return client.EntityRef{}, err
		}
	}
	if dup != nil {
		for _, existing := range f.refs[kind][parentID] {
			if dup(existing) {
				return client.EntityRef{}, &client.APIError{
					Status:  http.StatusConflict,
					Message: "already exists",
				}
			}
		}
	}
	f.nextID++
	ref.ID = fmt.Sprintf("%s-%d", kind, f.nextID)
	f.refs[kind][parentID] = append(f.refs[kind][parentID], ref)
	return ref, nil
}

func (f *fakeAPI) list(kind client.EntityKind, parentID string) ([]client.EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.EntityRef, len(f.refs[kind][parentID]))
	copy(out, f.refs[kind][parentID])
	return out, nil
}

// count returns the total number of entities of one kind across parents.
func (f *fakeAPI) count(kind client.EntityKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, refs := range f.refs[kind] {
		total += len(refs)
	}
	return total
}

// insert seeds the fake with a pre-existing entity.
func (f *fakeAPI) insert(kind client.EntityKind, parentID string, ref client.EntityRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[kind][parentID] = append(f.refs[kind][parentID], ref)
}

func (f *fakeAPI) CreateOrganization(ctx context.Context, org *client.Organization) (client.EntityRef, error) {
	return f.create(client.KindOrganization, "", client.EntityRef{Name: org.LegalName},
		func(r client.EntityRef) bool { return r.Name == org.LegalName })
}

func (f *fakeAPI) CreateLedger(ctx context.Context, orgID string, ledger *client.Ledger) (client.EntityRef, error) {
	return f.create(client.KindLedger, orgID, client.EntityRef{Name: ledger.Name},
		func(r client.EntityRef) bool { return r.Name == ledger.Name })
}

func (f *fakeAPI) CreateAsset(ctx context.Context, orgID, ledgerID string, asset *client.Asset) (client.EntityRef, error) {
	return f.create(client.KindAsset, ledgerID, client.EntityRef{Name: asset.Name, Code: asset.Code},
		func(r client.EntityRef) bool { return r.Code == asset.Code })
}

func (f *fakeAPI) CreatePortfolio(ctx context.Context, orgID, ledgerID string, p *client.Portfolio) (client.EntityRef, error) {
	return f.create(client.KindPortfolio, ledgerID, client.EntityRef{Name: p.Name},
		func(r client.EntityRef) bool { return r.Name == p.Name })
}

func (f *fakeAPI) CreateSegment(ctx context.Context, orgID, ledgerID string, s *client.Segment) (client.EntityRef, error) {
	return f.create(client.KindSegment, ledgerID, client.EntityRef{Name: s.Name},
		func(r client.EntityRef) bool { return r.Name == s.Name })
}

func (f *fakeAPI) CreateAccount(ctx context.Context, orgID, ledgerID string, a *client.Account) (client.EntityRef, error) {
	return f.create(client.KindAccount, ledgerID, client.EntityRef{Name: a.Name, Alias: a.Alias},
		func(r client.EntityRef) bool { return r.Alias == a.Alias })
}

func (f *fakeAPI) CreateTransaction(ctx context.Context, orgID, ledgerID string, tx *client.Transaction) (client.EntityRef, error) {
	if len(tx.Sources) == 0 || len(tx.Destinations) == 0 {
		return client.EntityRef{}, &client.APIError{Status: http.StatusBadRequest, Message: "missing operations"}
	}
	if tx.Sources[0].Amount.Value != tx.Destinations[0].Amount.Value {
		return client.EntityRef{}, &client.APIError{Status: http.StatusBadRequest, Message: "unbalanced transaction"}
	}
	return f.create(client.KindTransaction, ledgerID, client.EntityRef{}, nil)
}

func (f *fakeAPI) ListOrganizations(ctx context.Context) ([]client.EntityRef, error) {
	return f.list(client.KindOrganization, "")
}

func (f *fakeAPI) ListLedgers(ctx context.Context, orgID string) ([]client.EntityRef, error) {
	return f.list(client.KindLedger, orgID)
}

func (f *fakeAPI) ListAssets(ctx context.Context, orgID, ledgerID string) ([]client.EntityRef, error) {
	return f.list(client.KindAsset, ledgerID)
}

func (f *fakeAPI) ListPortfolios(ctx context.Context, orgID, ledgerID string) ([]client.EntityRef, error) {
	return f.list(client.KindPortfolio, ledgerID)
}

func (f *fakeAPI) ListSegments(ctx context.Context, orgID, ledgerID string) ([]client.EntityRef, error) {
	return f.list(client.KindSegment, ledgerID)
}

func (f *fakeAPI) ListAccounts(ctx context.Context, orgID, ledgerID string) ([]client.EntityRef, error) {
	return f.list(client.KindAccount, ledgerID)
}

// testConfig returns a fast-running configuration with deterministic
// ordering: sequential workers and a fixed seed produce identical payloads
// across runs.
func testConfig(t *testing.T, seed int64) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CheckpointDir = t.TempDir()
	cfg.Seed = seed
	cfg.BatchDelay = "1ms"
	cfg.Retry = config.RetryConfig{MaxAttempts: 2, InitialBackoff: "1ms", MaxBackoff: "2ms"}
	cfg.Breaker.FailureThreshold = 1000
	cfg.Counts = config.Counts{
		Organizations:          2,
		LedgersPerOrganization: 2,
		AssetsPerLedger:        2,
		PortfoliosPerLedger:    1,
		SegmentsPerLedger:      1,
		AccountsPerLedger:      4,
		TransactionsPerLedger:  3,
	}
	cfg.Concurrency = config.Concurrency{
		Organizations: 1, Ledgers: 1, Assets: 1, Accounts: 1, Transactions: 1,
	}
	cfg.Normalize()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newOrchestrator(t *testing.T, cfg config.Config, api client.API) (*orchestrator.Orchestrator, *state.Manager) {
	t.Helper()
	cps, err := checkpoint.NewManager(cfg.CheckpointDir, nil)
	require.NoError(t, err)
	st := state.NewManager(state.Config{MaxEntitiesInMemory: cfg.MaxEntitiesInMemory})
	return orchestrator.New(cfg, api, generator.New(cfg.Seed), st, cps, nil), st
}

func TestFullRunCreatesEveryEntityKind(t *testing.T) {
	cfg := testConfig(t, 1)
	fake := newFakeAPI()
	orch, _ := newOrchestrator(t, cfg, fake)

	metrics, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, fake.count(client.KindOrganization))
	require.Equal(t, 4, fake.count(client.KindLedger))
	require.Equal(t, 8, fake.count(client.KindAsset))
	require.Equal(t, 4, fake.count(client.KindPortfolio))
	require.Equal(t, 4, fake.count(client.KindSegment))
	require.Equal(t, 16, fake.count(client.KindAccount))
	require.Equal(t, 12, fake.count(client.KindTransaction))

	require.Equal(t, int64(12), metrics.Created[client.KindTransaction])
	require.Zero(t, metrics.TotalErrors())
	require.Equal(t, float64(1), metrics.SuccessRate())

	cps, err := checkpoint.NewManager(cfg.CheckpointDir, nil)
	require.NoError(t, err)
	latest, err := cps.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, checkpoint.PhaseCompleted, latest.Progress.Phase)
}

func TestAssetOutageSkipsLedgerContentsOnly(t *testing.T) {
	cfg := testConfig(t, 2)
	fake := newFakeAPI()

	// The first ledger to reach asset creation loses every attempt; its
	// siblings are untouched.
	var target string
	fake.hook = func(kind client.EntityKind, parentID string) {
		if kind == client.KindAsset && target == "" {
			target = parentID
		}
	}
	fake.failOn = func(kind client.EntityKind, parentID string) error {
		if kind == client.KindAsset && parentID == target {
			return &client.APIError{Status: http.StatusInternalServerError, Message: "asset service down"}
		}
		return nil
	}

	orch, st := newOrchestrator(t, cfg, fake)
	metrics, err := orch.Run(context.Background())
	require.NoError(t, err)

	// Three of four ledgers were seeded in full.
	require.Equal(t, 4, fake.count(client.KindLedger))
	require.Equal(t, 6, fake.count(client.KindAsset))
	require.Equal(t, 12, fake.count(client.KindAccount))
	require.Equal(t, 9, fake.count(client.KindTransaction))

	// The starved ledger holds nothing downstream of assets.
	require.Empty(t, st.IDs(client.KindAccount, target))
	require.Empty(t, st.IDs(client.KindTransaction, target))

	require.GreaterOrEqual(t, metrics.Errors[client.KindAsset], int64(2))
	require.NotEmpty(t, st.ErrorRecords(client.KindAsset))
}

func TestConflictRecoveryReusesExistingOrganization(t *testing.T) {
	const seed = 7
	cfg := testConfig(t, seed)
	cfg.Counts.Organizations = 1

	// The platform already holds the organization this seed will produce.
	wantName := generator.New(seed).Organization(0).LegalName
	fake := newFakeAPI()
	fake.insert(client.KindOrganization, "", client.EntityRef{ID: "org-preexisting", Name: wantName})

	orch, st := newOrchestrator(t, cfg, fake)
	metrics, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"org-preexisting"}, st.OrganizationIDs())
	require.Equal(t, 1, fake.count(client.KindOrganization))
	require.Zero(t, metrics.Errors[client.KindOrganization])
}

func TestRerunReusesOnboardingEntities(t *testing.T) {
	cfg := testConfig(t, 11)
	fake := newFakeAPI()

	orch1, _ := newOrchestrator(t, cfg, fake)
	_, err := orch1.Run(context.Background())
	require.NoError(t, err)

	firstTx := fake.count(client.KindTransaction)

	// Same seed and sequential workers reproduce the same payloads, so the
	// second run resolves every onboarding create as a conflict and reuses
	// the existing entities. Transactions carry fresh idempotency keys and
	// are created anew.
	orch2, _ := newOrchestrator(t, cfg, fake)
	metrics, err := orch2.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, fake.count(client.KindOrganization))
	require.Equal(t, 4, fake.count(client.KindLedger))
	require.Equal(t, 8, fake.count(client.KindAsset))
	require.Equal(t, 4, fake.count(client.KindPortfolio))
	require.Equal(t, 4, fake.count(client.KindSegment))
	require.Equal(t, 16, fake.count(client.KindAccount))
	require.Equal(t, firstTx*2, fake.count(client.KindTransaction))
	require.Zero(t, metrics.TotalErrors())
}

func TestInterruptAndResume(t *testing.T) {
	cfg := testConfig(t, 13)
	fake := newFakeAPI()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while the second organization's ledgers are being created,
	// after the first organization was fully seeded and checkpointed.
	ledgerCreates := 0
	fake.hook = func(kind client.EntityKind, parentID string) {
		if kind == client.KindLedger {
			ledgerCreates++
			if ledgerCreates == 3 {
				cancel()
			}
		}
	}

	orch1, _ := newOrchestrator(t, cfg, fake)
	_, err := orch1.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The failure left an error checkpoint behind.
	cps, err := checkpoint.NewManager(cfg.CheckpointDir, nil)
	require.NoError(t, err)
	latest, err := cps.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, checkpoint.PhaseError, latest.Progress.Phase)
	require.Equal(t, 1, latest.Progress.CurrentOrganizationIndex)

	// A fresh invocation resumes and finishes without redoing the first
	// organization.
	fake.hook = nil
	orch2, _ := newOrchestrator(t, cfg, fake)
	metrics, err := orch2.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, fake.count(client.KindOrganization))
	require.Equal(t, 4, fake.count(client.KindLedger))
	require.Equal(t, 8, fake.count(client.KindAsset))
	require.Equal(t, 16, fake.count(client.KindAccount))
	require.Equal(t, 12, fake.count(client.KindTransaction))
	require.Zero(t, metrics.TotalErrors())

	final, err := cps.LoadLatest()
	require.NoError(t, err)
	require.Equal(t, checkpoint.PhaseCompleted, final.Progress.Phase)
}

func TestSummaryRendersPerKindCounts(t *testing.T) {
	cfg := testConfig(t, 3)
	fake := newFakeAPI()
	orch, _ := newOrchestrator(t, cfg, fake)

	metrics, err := orch.Run(context.Background())
	require.NoError(t, err)

	summary := orchestrator.NewSummary(metrics)
	out := summary.String()
	require.Contains(t, out, "organization:")
	require.Contains(t, out, "transaction:")
	require.Contains(t, out, "success rate: 100.0%")
}
