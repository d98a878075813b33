package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ammCore/internal/amm"
	"ammCore/internal/ledger"
	"ammCore/internal/storage/postgres"
)

const snapshotVersion = 1

// Snapshot is the persisted state of one pool and its custody ledger.
type Snapshot struct {
	Version   int           `json:"version"`
	Created   bool          `json:"created"`
	Pool      amm.PoolState `json:"pool"`
	Ledger    ledger.State  `json:"ledger"`
	UpdatedAt string        `json:"updated_at"`
}

// SnapshotStore persists the latest snapshot.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snap Snapshot) error
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("snapshot version %d not supported", snap.Version)
	}
	return snap, nil
}

// FileSnapshotStore stores the snapshot in a local JSON file.
type FileSnapshotStore struct {
	Path string
}

func (s *FileSnapshotStore) Load(ctx context.Context) (Snapshot, bool, error) {
	if s == nil || s.Path == "" {
		return Snapshot{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *FileSnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// DBSnapshotStore stores the snapshot in the pool_snapshots table under Key.
type DBSnapshotStore struct {
	Store *postgres.Store
	Key   string
}

func (s *DBSnapshotStore) Load(ctx context.Context) (Snapshot, bool, error) {
	if s == nil || s.Store == nil {
		return Snapshot{}, false, nil
	}
	data, ok, err := s.Store.LoadSnapshot(ctx, s.Key)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *DBSnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.Store.SaveSnapshot(ctx, s.Key, data)
}
