package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const filePrefix = "checkpoint-"

// Manager saves and restores checkpoints under one directory. It is a
// single-writer design: no cross-process coordination is attempted.
type Manager struct {
	dir    string
	logger *zap.Logger
}

// NewManager creates the checkpoint directory if absent.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Manager{dir: dir, logger: logger}, nil
}

// Save persists one checkpoint and returns the file path. The filename
// embeds the id and a millisecond timestamp so lexicographic listing and
// recency ordering agree only through the parsed timestamp, which is what
// LoadLatest uses.
func (m *Manager) Save(cp *Checkpoint) (string, error) {
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}

	name := fmt.Sprintf("%s%s-%d.json", filePrefix, cp.ID, cp.Timestamp.UnixMilli())
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}

	m.logger.Info("checkpoint saved",
		zap.String("id", cp.ID),
		zap.String("phase", cp.Progress.Phase),
		zap.Int("organization_index", cp.Progress.CurrentOrganizationIndex),
		zap.Int("ledger_index", cp.Progress.CurrentLedgerIndex),
		zap.String("path", path))
	return path, nil
}

// LoadLatest returns the most recent persisted checkpoint, or nil when the
// directory holds none.
func (m *Manager) LoadLatest() (*Checkpoint, error) {
	files, err := m.listFiles()
	if err != nil || len(files) == 0 {
		return nil, err
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", latest, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", latest, err)
	}
	m.logger.Info("checkpoint loaded",
		zap.String("id", cp.ID),
		zap.Time("timestamp", cp.Timestamp),
		zap.String("phase", cp.Progress.Phase))
	return &cp, nil
}

// List returns every persisted checkpoint, oldest first.
func (m *Manager) List() ([]*Checkpoint, error) {
	files, err := m.listFiles()
	if err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			m.logger.Warn("skipping unreadable checkpoint", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, &cp)
	}
	return out, nil
}

// DetermineResumePoint computes where the per-organization, per-ledger loop
// restarts. Organizations before the recorded index are never redone; within
// the in-flight organization, only fully seeded ledgers are skipped. A
// ledger that was created but interrupted mid-seed is redone, which is safe
// because creation is conflict-tolerant.
func (m *Manager) DetermineResumePoint(cp *Checkpoint) ResumePoint {
	return ResumePoint{
		SkipOrganizations: cp.Progress.CurrentOrganizationIndex,
		SkipLedgers:       cp.Progress.CurrentLedgerIndex,
		Phase:             cp.Progress.Phase,
	}
}

// CleanupOld deletes all but the most recent keep checkpoints.
func (m *Manager) CleanupOld(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	files, err := m.listFiles()
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}

	removed := 0
	for _, path := range files[:len(files)-keep] {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove checkpoint %s: %w", path, err)
		}
		removed++
	}
	m.logger.Info("old checkpoints removed", zap.Int("removed", removed), zap.Int("kept", keep))
	return removed, nil
}

// listFiles returns checkpoint file paths ordered oldest to newest by the
// timestamp embedded in the filename.
func (m *Manager) listFiles() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	type dated struct {
		path string
		ts   int64
	}
	var files []dated
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, dated{
			path: filepath.Join(m.dir, name),
			ts:   parseTimestamp(name),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ts < files[j].ts })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// parseTimestamp extracts the millisecond timestamp from
// "checkpoint-<id>-<millis>.json". Unparseable names sort first.
func parseTimestamp(name string) int64 {
	trimmed := strings.TrimSuffix(name, ".json")
	idx := strings.LastIndex(trimmed, "-")
	if idx < 0 {
		return 0
	}
	ts, err := strconv.ParseInt(trimmed[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return ts
}
