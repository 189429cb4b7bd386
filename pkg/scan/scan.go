// Package scan implements the concurrent license resolution engine.
//
// The engine walks a lazily discovered dependency graph: seed identities go
// onto a shared work queue, a fixed pool of workers pops them, resolves each
// through the cache or the registry resolver, and enqueues newly discovered
// children. A processed set keyed by canonical identity hash guarantees each
// distinct package completes at most once regardless of how many lockfile
// entries or dependency edges point at it.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/observability"
)

// Options configures an Engine.
type Options struct {
	// Workers is the number of concurrent resolution workers.
	Workers int

	// RetryUnknown re-resolves cached entries whose license is UNKNOWN
	// instead of reusing them. Entries with a known license are still served
	// from cache.
	RetryUnknown bool

	// TrackEdges records parent-to-child dependency edges during the walk,
	// for tree and graph output.
	TrackEdges bool

	// Refresh skips cache reads so every package is re-resolved. Fresh
	// results are still written back to the cache.
	Refresh bool

	// Logger receives per-package progress. Defaults to the standard logger.
	Logger *log.Logger
}

// DefaultWorkers is the worker pool size used when Options.Workers is unset.
const DefaultWorkers = 4

// WithDefaults fills in zero-valued options.
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Result holds the outcome of a scan.
type Result struct {
	// Records lists one resolved record per distinct package, in completion
	// order.
	Records []*deps.Record

	// Edges maps a parent's display ID to the display IDs of its direct
	// dependencies. Populated only when edge tracking is enabled.
	Edges map[string][]string
}

// Engine resolves a dependency graph starting from seed identities.
type Engine struct {
	resolver deps.Resolver
	store    cache.Store
	opts     Options

	q *queue

	mu        sync.Mutex
	processed map[string]struct{}
	records   []*deps.Record
	edges     map[string][]string
}

// New creates an engine. The resolver is consulted on cache misses; pass a
// cache.NullStore to disable caching entirely.
func New(resolver deps.Resolver, store cache.Store, opts Options) *Engine {
	opts = opts.WithDefaults()
	e := &Engine{
		resolver:  resolver,
		store:     store,
		opts:      opts,
		q:         newQueue(),
		processed: make(map[string]struct{}),
	}
	if opts.TrackEdges {
		e.edges = make(map[string][]string)
	}
	return e
}

// Run resolves the graph reachable from the initial identities and returns
// all records. It errors immediately when no identities are given. Run may
// be called once per engine.
func (e *Engine) Run(ctx context.Context, initial []deps.Identity) (*Result, error) {
	seeds := 0
	for _, id := range initial {
		if id.Ignored() {
			continue
		}
		e.q.push(item{id: id})
		seeds++
	}
	if seeds == 0 {
		return nil, fmt.Errorf("no packages to scan")
	}

	observability.Scan().OnScanStart(ctx, seeds)

	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	res := &Result{Records: e.records, Edges: e.edges}
	e.mu.Unlock()

	observability.Scan().OnScanComplete(ctx, len(res.Records))
	return res, nil
}

// worker pops items until the queue drains with no resolution in flight.
func (e *Engine) worker(ctx context.Context) {
	for {
		it, ok := e.q.pop(ctx)
		if !ok {
			return
		}
		e.process(ctx, it)
		e.q.done()
	}
}

// process resolves a single queue item and commits its record.
func (e *Engine) process(ctx context.Context, it item) {
	hash := deps.Hash(it.id)

	e.mu.Lock()
	_, seen := e.processed[hash]
	e.mu.Unlock()
	if seen {
		return
	}

	logger := e.opts.Logger
	observability.Scan().OnResolveStart(ctx, it.id.Name, it.id.Version)

	if !e.opts.Refresh {
		if rec, ok := e.cacheGet(ctx, hash); ok {
			if e.opts.RetryUnknown && rec.License == deps.UnknownLicense {
				logger.Debug("retrying unknown license", "package", it.id.DisplayID())
			} else {
				logger.Debug("cache hit", "package", it.id.DisplayID())
				e.commit(ctx, it, hash, rec, false)
				return
			}
		}
	}

	rec, err := e.resolver.Resolve(ctx, it.id)
	if err != nil {
		logger.Warn("resolution failed", "package", it.id.DisplayID(), "error", err)
		observability.Scan().OnResolveError(ctx, it.id.Name, it.id.Version, err)
		rec = errorRecord(it.id, err)
		// Error placeholders stay out of the cache so a later run can retry.
		e.commit(ctx, it, hash, rec, false)
		return
	}
	rec.Processed = true
	e.commit(ctx, it, hash, rec, true)
}

// commit marks the hash processed, appends the record, records edges and
// enqueues unprocessed children. The processed check and insert happen under
// one lock so a hash completes at most once even if two workers raced to
// resolve it.
func (e *Engine) commit(ctx context.Context, it item, hash string, rec *deps.Record, persist bool) {
	e.mu.Lock()
	if _, seen := e.processed[hash]; seen {
		e.mu.Unlock()
		return
	}
	e.processed[hash] = struct{}{}
	e.records = append(e.records, rec)
	e.mu.Unlock()

	if persist {
		e.cachePut(ctx, hash, rec)
	}
	observability.Scan().OnResolveComplete(ctx, rec.Name, rec.Version, rec.License)

	parent := rec.DisplayID()
	for _, child := range rec.Dependencies {
		if child.Ignored() {
			continue
		}
		e.recordEdge(parent, child.DisplayID())

		childHash := deps.Hash(child)
		e.mu.Lock()
		_, seen := e.processed[childHash]
		e.mu.Unlock()
		if seen {
			continue
		}
		e.q.push(item{id: child})
	}
}

// recordEdge stores one parent-to-child adjacency. Edges land on every
// discovery, including when the child itself resolves from cache or has
// already completed under another parent.
func (e *Engine) recordEdge(parent, child string) {
	if e.edges == nil {
		return
	}
	e.mu.Lock()
	e.edges[parent] = append(e.edges[parent], child)
	e.mu.Unlock()
}

// cacheGet loads and decodes a cached record. Malformed or unreadable
// entries are logged and treated as absent.
func (e *Engine) cacheGet(ctx context.Context, hash string) (*deps.Record, bool) {
	data, found, err := e.store.Get(ctx, hash)
	if err != nil {
		e.opts.Logger.Warn("cache read failed", "key", hash, "error", err)
		observability.Cache().OnError(ctx, "get", err)
		return nil, false
	}
	if !found {
		observability.Cache().OnMiss(ctx, hash)
		return nil, false
	}
	var rec deps.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		e.opts.Logger.Warn("cache entry malformed", "key", hash, "error", err)
		observability.Cache().OnError(ctx, "decode", err)
		return nil, false
	}
	// A cached entry is never itself a retry in flight.
	rec.RetryForUnknown = false
	observability.Cache().OnHit(ctx, hash)
	return &rec, true
}

// cachePut stores a record. Failures are logged, never fatal: the scan's
// results do not depend on the cache being writable.
func (e *Engine) cachePut(ctx context.Context, hash string, rec *deps.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		e.opts.Logger.Warn("cache encode failed", "key", hash, "error", err)
		return
	}
	if err := e.store.Set(ctx, hash, data); err != nil {
		e.opts.Logger.Warn("cache write failed", "key", hash, "error", err)
		observability.Cache().OnError(ctx, "set", err)
		return
	}
	observability.Cache().OnSet(ctx, hash, len(data))
}
