package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/licenscan/licenscan/pkg/deps"
)

func newScan(createdAt time.Time) *Scan {
	rec := deps.NewRecord(deps.Identity{Name: "lodash", Version: "4.17.21"})
	rec.License = "MIT"
	return &Scan{
		ID:        uuid.New(),
		CreatedAt: createdAt,
		Lockfiles: []string{"yarn.lock"},
		Records:   []*deps.Record{rec},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	scan := newScan(time.Now())
	if err := s.Put(ctx, scan); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, scan.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != scan.ID || len(got.Records) != 1 {
		t.Errorf("got = %+v", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	old := newScan(time.Now().Add(-time.Hour))
	recent := newScan(time.Now())
	s.Put(ctx, old)
	s.Put(ctx, recent)

	scans, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("len = %d, want 2", len(scans))
	}
	if scans[0].ID != recent.ID {
		t.Error("list is not newest first")
	}
}

func TestMemoryStoreListLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		s.Put(ctx, newScan(time.Now()))
	}

	scans, err := s.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scans) != 3 {
		t.Errorf("len = %d, want 3", len(scans))
	}
}

func TestEdgeMapRoundTrip(t *testing.T) {
	in := map[string][]string{
		"a@1.0.0": {"b@1.0.0", "c@1.0.0"},
		"b@1.0.0": {"c@1.0.0"},
	}

	out := EdgeMap(EdgesFromMap(in))

	if len(out) != 2 {
		t.Fatalf("out = %v", out)
	}
	if len(out["a@1.0.0"]) != 2 || len(out["b@1.0.0"]) != 1 {
		t.Errorf("out = %v", out)
	}
}
