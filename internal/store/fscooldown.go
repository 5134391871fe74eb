// FILE: internal/store/fscooldown.go
// Package store – Filesystem-backed cooldown.Store: one JSON document of
// key->last_fire_ts, written via tmpfile+rename so Set is durable before the
// ledger lets its caller emit (spec §4.2 ordering).
package store

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

// FSCooldownStore persists the cooldown key/value map to a single JSON file.
type FSCooldownStore struct {
	Path string

	mu sync.Mutex
}

func NewFSCooldownStore(path string) *FSCooldownStore { return &FSCooldownStore{Path: path} }

func (s *FSCooldownStore) Get(ctx context.Context, key string) (time.Time, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return all[key], nil
}

func (s *FSCooldownStore) Set(_ context.Context, key string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return &model.StoreError{Op: "fscooldown.read", Err: err, Retryable: false}
	}
	all[key] = ts
	if err := WriteJSONAtomic(s.Path, all); err != nil {
		return err
	}
	return nil
}

func (s *FSCooldownStore) LoadAll(_ context.Context) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return nil, &model.StoreError{Op: "fscooldown.read", Err: err, Retryable: false}
	}
	return all, nil
}

func (s *FSCooldownStore) readAll() (map[string]time.Time, error) {
	b, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out map[string]time.Time
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]time.Time{}
	}
	return out, nil
}
