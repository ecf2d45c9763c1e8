package janitor

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mkamau/receiptgen/internal/artifact"
	"github.com/mkamau/receiptgen/internal/domain"
	"github.com/mkamau/receiptgen/internal/logger"
)

// fakeRepo tracks records by code with fixed creation times.
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]time.Time // code -> created_at
}

func (f *fakeRepo) FindOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.TransactionRecord
	for code, created := range f.records {
		if !created.After(cutoff) {
			out = append(out, &domain.TransactionRecord{ID: "id-" + code, Code: code, CreatedAt: created})
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for code, created := range f.records {
		if !created.After(cutoff) {
			delete(f.records, code)
			n++
		}
	}
	return n, nil
}

// memStore is a map-backed artifact store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Write(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return data, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return artifact.ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{records: map[string]time.Time{
		"OLD0000001": now.Add(-25 * time.Hour),
		"OLD0000002": now.Add(-48 * time.Hour),
		"NEW0000001": now.Add(-23 * time.Hour),
	}}
	artifacts := &memStore{objects: map[string][]byte{
		artifact.Key("OLD0000001"): []byte("old1"),
		artifact.Key("OLD0000002"): []byte("old2"),
		artifact.Key("NEW0000001"): []byte("new1"),
	}}

	j := New(repo, artifacts, DefaultRetention, logger.NewWithWriter(&bytes.Buffer{}))

	deleted, err := j.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if _, ok := repo.records["NEW0000001"]; !ok {
		t.Error("record younger than the threshold was deleted")
	}
	if _, ok := repo.records["OLD0000001"]; ok {
		t.Error("expired record survived the sweep")
	}

	if _, err := artifacts.Read(context.Background(), artifact.Key("NEW0000001")); err != nil {
		t.Error("artifact younger than the threshold was deleted")
	}
	if _, err := artifacts.Read(context.Background(), artifact.Key("OLD0000001")); err == nil {
		t.Error("expired artifact survived the sweep")
	}
}

func TestSweepMissingArtifactIsNotAnError(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{records: map[string]time.Time{
		// Expired but never rendered, so no artifact exists.
		"OLD0000001": now.Add(-30 * time.Hour),
	}}
	artifacts := &memStore{objects: map[string][]byte{}}

	j := New(repo, artifacts, DefaultRetention, logger.NewWithWriter(&bytes.Buffer{}))

	deleted, err := j.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestSweepNothingExpired(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{records: map[string]time.Time{
		"NEW0000001": now.Add(-time.Hour),
	}}
	artifacts := &memStore{objects: map[string][]byte{}}

	j := New(repo, artifacts, DefaultRetention, logger.NewWithWriter(&bytes.Buffer{}))

	deleted, err := j.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if len(repo.records) != 1 {
		t.Error("sweep touched a record inside the retention window")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{records: map[string]time.Time{
		"OLD0000001": now.Add(-25 * time.Hour),
	}}
	artifacts := &memStore{objects: map[string][]byte{
		artifact.Key("OLD0000001"): []byte("old"),
	}}

	j := New(repo, artifacts, DefaultRetention, logger.NewWithWriter(&bytes.Buffer{}))
	ctx := context.Background()

	if _, err := j.Sweep(ctx, now); err != nil {
		t.Fatalf("first Sweep() error: %v", err)
	}
	deleted, err := j.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("second Sweep() error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second sweep deleted = %d, want 0", deleted)
	}
}
