// Package state holds the authoritative in-memory record of what a
// generation run has created: entity IDs per parent and per kind, the
// auxiliary lookup maps downstream phases need, and running metrics.
//
// One Manager exists per run. It is constructed explicitly and passed into
// the orchestrator and generators; there is no package-level instance.
package state

import (
	"slices"
	"sync"
	"time"

	"ledgerseed/internal/client"
)

// maxErrorRecords bounds the per-kind ring of detailed error records.
const maxErrorRecords = 100

// ErrorRecord is a detailed failure entry kept for diagnostics.
type ErrorRecord struct {
	Kind      client.EntityKind `json:"kind"`
	ParentID  string            `json:"parent_id,omitempty"`
	Message   string            `json:"message"`
	Context   string            `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Snapshot is the storage-neutral form of a Manager's entity maps. It
// contains only plain maps and slices so it round-trips through JSON
// without conversion.
type Snapshot struct {
	OrganizationIDs   []string                       `json:"organization_ids"`
	Entities          map[string]map[string][]string `json:"entities"` // kind -> parent ID -> child IDs
	AssetCodes        map[string]string              `json:"asset_codes"`         // asset ID -> code
	AccountAliases    map[string]string              `json:"account_aliases"`     // account ID -> alias
	AccountAssetCodes map[string]string              `json:"account_asset_codes"` // account ID -> asset code
}

// Config bounds the Manager's memory.
type Config struct {
	// MaxEntitiesInMemory caps the stored child IDs per parent per kind.
	// When the cap is reached the oldest ID is evicted before appending:
	// downstream dependents only ever need some valid ID, not history.
	MaxEntitiesInMemory int
}

// Manager tracks created entity IDs and metrics for one run. All methods
// are safe for concurrent use; each mutation is a single critical section.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	orgIDs            []string
	entities          map[client.EntityKind]map[string][]string
	assetCodes        map[string]string
	accountAliases    map[string]string
	accountAssetCodes map[string]string

	errorRecords map[client.EntityKind][]ErrorRecord

	created   map[client.EntityKind]int64
	errors    map[client.EntityKind]int64
	retries   int64
	startTime time.Time
	endTime   time.Time
}

// NewManager creates a state manager for one generation run.
func NewManager(cfg Config) *Manager {
	if cfg.MaxEntitiesInMemory <= 0 {
		cfg.MaxEntitiesInMemory = 10000
	}
	m := &Manager{cfg: cfg}
	m.resetLocked()
	return m
}

// Reset clears all state and stamps a fresh start time.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Manager) resetLocked() {
	m.orgIDs = nil
	m.entities = make(map[client.EntityKind]map[string][]string)
	m.assetCodes = make(map[string]string)
	m.accountAliases = make(map[string]string)
	m.accountAssetCodes = make(map[string]string)
	m.errorRecords = make(map[client.EntityKind][]ErrorRecord)
	m.created = make(map[client.EntityKind]int64)
	m.errors = make(map[client.EntityKind]int64)
	m.retries = 0
	m.startTime = time.Now()
	m.endTime = time.Time{}
}

// AddOrganizationID appends a top-level organization ID. Idempotent.
func (m *Manager) AddOrganizationID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.orgIDs, id) {
		return
	}
	if len(m.orgIDs) >= m.cfg.MaxEntitiesInMemory {
		m.orgIDs = m.orgIDs[1:]
	}
	m.orgIDs = append(m.orgIDs, id)
	m.created[client.KindOrganization]++
}

// OrganizationIDs returns a copy of the ordered organization ID list.
func (m *Manager) OrganizationIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.orgIDs)
}

// AddEntityID records a created child ID under its parent. The append is
// idempotent per parent; when the per-parent cap is reached the oldest ID
// is evicted first (FIFO).
func (m *Manager) AddEntityID(kind client.EntityKind, parentID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byParent, ok := m.entities[kind]
	if !ok {
		byParent = make(map[string][]string)
		m.entities[kind] = byParent
	}
	ids := byParent[parentID]
	if slices.Contains(ids, id) {
		return
	}
	if len(ids) >= m.cfg.MaxEntitiesInMemory {
		ids = ids[1:]
	}
	byParent[parentID] = append(ids, id)
	m.created[kind]++
}

// IDs returns a copy of the ordered child IDs for kind under parentID.
func (m *Manager) IDs(kind client.EntityKind, parentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entities[kind][parentID])
}

// SetAssetCode records the code of a created asset.
func (m *Manager) SetAssetCode(assetID, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assetCodes[assetID] = code
}

// AssetCode returns the code recorded for an asset ID.
func (m *Manager) AssetCode(assetID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.assetCodes[assetID]
	return code, ok
}

// SetAccountAlias records the alias of a created account.
func (m *Manager) SetAccountAlias(accountID, alias string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountAliases[accountID] = alias
}

// AccountAlias returns the alias recorded for an account ID.
func (m *Manager) AccountAlias(accountID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alias, ok := m.accountAliases[accountID]
	return alias, ok
}

// SetAccountAssetCode records which asset an account holds.
func (m *Manager) SetAccountAssetCode(accountID, assetCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountAssetCodes[accountID] = assetCode
}

// AccountAssetCode returns the asset code recorded for an account ID.
func (m *Manager) AccountAssetCode(accountID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.accountAssetCodes[accountID]
	return code, ok
}

// IncrementErrorCount bumps the error counter for a kind.
func (m *Manager) IncrementErrorCount(kind client.EntityKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

// TrackGenerationError counts an error and retains a bounded ring of
// detailed records for the kind.
func (m *Manager) TrackGenerationError(kind client.EntityKind, parentID string, err error, context string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors[kind]++
	records := append(m.errorRecords[kind], ErrorRecord{
		Kind:      kind,
		ParentID:  parentID,
		Message:   err.Error(),
		Context:   context,
		Timestamp: time.Now(),
	})
	if len(records) > maxErrorRecords {
		records = records[len(records)-maxErrorRecords:]
	}
	m.errorRecords[kind] = records
}

// ErrorRecords returns a copy of the retained error records for a kind.
func (m *Manager) ErrorRecords(kind client.EntityKind) []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.errorRecords[kind])
}

// IncrementRetries bumps the global retry counter.
func (m *Manager) IncrementRetries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

// Metrics returns a read-only snapshot of the counters.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricsLocked()
}

func (m *Manager) metricsLocked() Metrics {
	created := make(map[client.EntityKind]int64, len(m.created))
	for k, v := range m.created {
		created[k] = v
	}
	errs := make(map[client.EntityKind]int64, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}
	return Metrics{
		Created:   created,
		Errors:    errs,
		Retries:   m.retries,
		StartTime: m.startTime,
		EndTime:   m.endTime,
	}
}

// CompleteGeneration stamps the end time and returns the final metrics.
func (m *Manager) CompleteGeneration() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endTime = time.Now()
	return m.metricsLocked()
}

// Snapshot exports the entity maps in storage-neutral form.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	entities := make(map[string]map[string][]string, len(m.entities))
	for kind, byParent := range m.entities {
		out := make(map[string][]string, len(byParent))
		for parent, ids := range byParent {
			out[parent] = slices.Clone(ids)
		}
		entities[string(kind)] = out
	}
	return Snapshot{
		OrganizationIDs:   slices.Clone(m.orgIDs),
		Entities:          entities,
		AssetCodes:        cloneMap(m.assetCodes),
		AccountAliases:    cloneMap(m.accountAliases),
		AccountAssetCodes: cloneMap(m.accountAssetCodes),
	}
}

// Restore rebuilds the entity maps from a snapshot and the counters from a
// checkpointed metrics record. Used on resume.
func (m *Manager) Restore(snap Snapshot, metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orgIDs = slices.Clone(snap.OrganizationIDs)
	m.entities = make(map[client.EntityKind]map[string][]string, len(snap.Entities))
	for kind, byParent := range snap.Entities {
		in := make(map[string][]string, len(byParent))
		for parent, ids := range byParent {
			in[parent] = slices.Clone(ids)
		}
		m.entities[client.EntityKind(kind)] = in
	}
	m.assetCodes = cloneMap(snap.AssetCodes)
	m.accountAliases = cloneMap(snap.AccountAliases)
	m.accountAssetCodes = cloneMap(snap.AccountAssetCodes)

	m.created = make(map[client.EntityKind]int64, len(metrics.Created))
	for k, v := range metrics.Created {
		m.created[k] = v
	}
	m.errors = make(map[client.EntityKind]int64, len(metrics.Errors))
	for k, v := range metrics.Errors {
		m.errors[k] = v
	}
	m.retries = metrics.Retries
	if !metrics.StartTime.IsZero() {
		m.startTime = metrics.StartTime
	}
	m.endTime = time.Time{}
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
