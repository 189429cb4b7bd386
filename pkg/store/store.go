// Package store archives completed scans so results can be listed and
// fetched later, from the CLI or the HTTP API.
//
// Two backends exist: a Mongo-backed store for deployments and an
// in-memory store for tests and single-shot runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/licenscan/licenscan/pkg/deps"
)

// ErrNotFound is returned when no scan exists under the requested ID.
var ErrNotFound = errors.New("scan not found")

// Edge is one parent-child relationship of the dependency graph. Edges are
// stored as a list rather than a map because package IDs contain dots,
// which BSON forbids in document keys.
type Edge struct {
	Parent string `bson:"parent" json:"parent"`
	Child  string `bson:"child" json:"child"`
}

// Scan is the archived result of one scan run.
type Scan struct {
	ID        uuid.UUID      `bson:"_id" json:"id"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	Lockfiles []string       `bson:"lockfiles" json:"lockfiles"`
	Records   []*deps.Record `bson:"records" json:"records"`
	Edges     []Edge         `bson:"edges,omitempty" json:"edges,omitempty"`
}

// EdgesFromMap flattens the engine's edge map into the stored form.
func EdgesFromMap(edges map[string][]string) []Edge {
	var out []Edge
	for parent, children := range edges {
		for _, child := range children {
			out = append(out, Edge{Parent: parent, Child: child})
		}
	}
	return out
}

// EdgeMap rebuilds the engine's edge map from the stored form.
func EdgeMap(edges []Edge) map[string][]string {
	out := make(map[string][]string)
	for _, e := range edges {
		out[e.Parent] = append(out[e.Parent], e.Child)
	}
	return out
}

// Store is the interface for scan history backends.
type Store interface {
	// Put archives a scan.
	Put(ctx context.Context, scan *Scan) error

	// Get retrieves a scan by ID. Returns ErrNotFound when it does not
	// exist.
	Get(ctx context.Context, id uuid.UUID) (*Scan, error)

	// List returns the most recent scans, newest first, up to limit.
	// A limit of 0 selects the backend default.
	List(ctx context.Context, limit int) ([]*Scan, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
