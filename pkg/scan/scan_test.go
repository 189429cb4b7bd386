package scan

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
)

// fakeResolver serves canned records keyed by package name and counts how
// often each one is requested.
type fakeResolver struct {
	mu      sync.Mutex
	calls   map[string]int
	records map[string]*deps.Record
	errs    map[string]error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		calls:   make(map[string]int),
		records: make(map[string]*deps.Record),
		errs:    make(map[string]error),
	}
}

func (f *fakeResolver) add(name, version, license string, children ...deps.Identity) {
	rec := deps.NewRecord(deps.Identity{Name: name, Version: version})
	rec.Registry = "npm"
	rec.License = license
	rec.Dependencies = children
	f.records[name] = rec
}

func (f *fakeResolver) Resolve(ctx context.Context, id deps.Identity) (*deps.Record, error) {
	f.mu.Lock()
	f.calls[id.Name]++
	f.mu.Unlock()

	if err, ok := f.errs[id.Name]; ok {
		return nil, err
	}
	rec, ok := f.records[id.Name]
	if !ok {
		return nil, errors.New("no such package")
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeResolver) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func ident(name, version string) deps.Identity {
	return deps.Identity{Name: name, Version: version}
}

func recordNames(res *Result) []string {
	names := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

func TestEngineResolvesDiamond(t *testing.T) {
	r := newFakeResolver()
	r.add("a", "1.0.0", "MIT", ident("b", "1.0.0"), ident("c", "1.0.0"))
	r.add("b", "1.0.0", "MIT", ident("c", "1.0.0"))
	r.add("c", "1.0.0", "Apache-2.0")

	eng := New(r, cache.NewNullStore(), Options{TrackEdges: true})
	res, err := eng.Run(context.Background(), []deps.Identity{ident("a", "1.0.0")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := recordNames(res)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("records = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("records = %v, want %v", got, want)
		}
	}

	// c is reachable through both a and b; both edges must be present even
	// though c resolves only once.
	edgesA := res.Edges["a@1.0.0"]
	sort.Strings(edgesA)
	if len(edgesA) != 2 || edgesA[0] != "b@1.0.0" || edgesA[1] != "c@1.0.0" {
		t.Errorf("edges[a] = %v, want [b@1.0.0 c@1.0.0]", edgesA)
	}
	if e := res.Edges["b@1.0.0"]; len(e) != 1 || e[0] != "c@1.0.0" {
		t.Errorf("edges[b] = %v, want [c@1.0.0]", e)
	}

	if r.callCount("c") != 1 {
		t.Errorf("c resolved %d times, want 1", r.callCount("c"))
	}
}

func TestEngineCycleTerminates(t *testing.T) {
	r := newFakeResolver()
	r.add("a", "1.0.0", "MIT", ident("b", "1.0.0"))
	r.add("b", "1.0.0", "MIT", ident("a", "1.0.0"))

	eng := New(r, cache.NewNullStore(), Options{Workers: 2})
	res, err := eng.Run(context.Background(), []deps.Identity{ident("a", "1.0.0")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 2 {
		t.Errorf("records = %d, want 2", len(res.Records))
	}
	if r.callCount("a") != 1 || r.callCount("b") != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", r.callCount("a"), r.callCount("b"))
	}
}

func TestEngineEmptySeedsFails(t *testing.T) {
	eng := New(newFakeResolver(), cache.NewNullStore(), Options{})
	if _, err := eng.Run(context.Background(), nil); err == nil {
		t.Fatal("Run with no seeds should fail")
	}
}

func TestEngineIgnoresLocalPackages(t *testing.T) {
	r := newFakeResolver()
	r.add("a", "1.0.0", "MIT", deps.Identity{Name: "workspace-pkg", Version: "0.0.0-use.local"})

	eng := New(r, cache.NewNullStore(), Options{})
	res, err := eng.Run(context.Background(), []deps.Identity{
		ident("a", "1.0.0"),
		{Name: "other-local", Version: "0.0.0-use.local"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Name != "a" {
		t.Errorf("records = %v, want only a", recordNames(res))
	}
	if r.callCount("workspace-pkg") != 0 {
		t.Error("workspace-local package must never reach the resolver")
	}
}

func TestEngineErrorProducesUnknownRecord(t *testing.T) {
	r := newFakeResolver()
	r.add("a", "1.0.0", "MIT", ident("broken", "2.0.0"))
	r.errs["broken"] = errors.New("registry returned 500")

	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	eng := New(r, store, Options{})
	res, err := eng.Run(context.Background(), []deps.Identity{ident("a", "1.0.0")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var placeholder *deps.Record
	for _, rec := range res.Records {
		if rec.Name == "broken" {
			placeholder = rec
		}
	}
	if placeholder == nil {
		t.Fatal("failed package must still appear in the results")
	}
	if placeholder.License != deps.UnknownLicense {
		t.Errorf("license = %q, want UNKNOWN", placeholder.License)
	}
	if placeholder.DebugInfo == "" {
		t.Error("placeholder must carry the failure text")
	}
	if !placeholder.Processed {
		t.Error("placeholder must be terminal")
	}

	// Error placeholders stay out of the cache so a fresh run retries.
	hash := deps.Hash(ident("broken", "2.0.0"))
	if _, found, _ := store.Get(context.Background(), hash); found {
		t.Error("error placeholder must not be cached")
	}

	if r.callCount("broken") != 1 {
		t.Errorf("broken resolved %d times in one run, want 1", r.callCount("broken"))
	}
}

func TestEngineServesFromCache(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id := ident("cached", "1.0.0")
	seedCache(t, store, id, "MIT")

	r := newFakeResolver()
	eng := New(r, store, Options{})
	res, err := eng.Run(context.Background(), []deps.Identity{id})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].License != "MIT" {
		t.Fatalf("records = %+v, want one MIT record", res.Records)
	}
	if r.callCount("cached") != 0 {
		t.Error("cached package must not reach the resolver")
	}
}

func TestEngineCacheHitEnqueuesChildren(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	parent := ident("parent", "1.0.0")
	seedCache(t, store, parent, "MIT", ident("child", "1.0.0"))

	r := newFakeResolver()
	r.add("child", "1.0.0", "ISC")

	eng := New(r, store, Options{TrackEdges: true})
	res, err := eng.Run(context.Background(), []deps.Identity{parent})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %v, want parent and child", recordNames(res))
	}
	// Edges must be recorded even when the parent came from cache.
	if e := res.Edges["parent@1.0.0"]; len(e) != 1 || e[0] != "child@1.0.0" {
		t.Errorf("edges[parent] = %v, want [child@1.0.0]", e)
	}
}

func TestEngineRetryUnknownReresolves(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id := ident("mystery", "1.0.0")
	seedCache(t, store, id, deps.UnknownLicense)

	r := newFakeResolver()
	r.add("mystery", "1.0.0", "BSD-3-Clause")

	eng := New(r, store, Options{RetryUnknown: true})
	res, err := eng.Run(context.Background(), []deps.Identity{id})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.callCount("mystery") != 1 {
		t.Fatalf("retry mode must bypass the UNKNOWN cache entry, calls=%d", r.callCount("mystery"))
	}
	if res.Records[0].License != "BSD-3-Clause" {
		t.Errorf("license = %q, want re-resolved BSD-3-Clause", res.Records[0].License)
	}

	// The fresh result replaces the stale entry wholesale.
	data, found, _ := store.Get(context.Background(), deps.Hash(id))
	if !found {
		t.Fatal("re-resolved record must be written back")
	}
	var cached deps.Record
	if err := json.Unmarshal(data, &cached); err != nil {
		t.Fatalf("unmarshal cached record: %v", err)
	}
	if cached.License != "BSD-3-Clause" {
		t.Errorf("cached license = %q, want BSD-3-Clause", cached.License)
	}
}

func TestEngineRetryKnownLicenseUsesCache(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id := ident("settled", "1.0.0")
	seedCache(t, store, id, "MIT")

	r := newFakeResolver()
	eng := New(r, store, Options{RetryUnknown: true})
	if _, err := eng.Run(context.Background(), []deps.Identity{id}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.callCount("settled") != 0 {
		t.Error("retry mode must not bypass entries with a known license")
	}
}

func TestEngineRetryDisabledReusesUnknown(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id := ident("mystery", "1.0.0")
	seedCache(t, store, id, deps.UnknownLicense)

	r := newFakeResolver()
	eng := New(r, store, Options{})
	res, err := eng.Run(context.Background(), []deps.Identity{id})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.callCount("mystery") != 0 {
		t.Error("without retry mode a cached UNKNOWN entry is reused as-is")
	}
	if res.Records[0].License != deps.UnknownLicense {
		t.Errorf("license = %q, want UNKNOWN", res.Records[0].License)
	}
}

func TestEngineRefreshBypassesCache(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id := ident("stale", "1.0.0")
	seedCache(t, store, id, "GPL-3.0")

	r := newFakeResolver()
	r.add("stale", "1.0.0", "MIT")

	eng := New(r, store, Options{Refresh: true})
	res, err := eng.Run(context.Background(), []deps.Identity{id})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.callCount("stale") != 1 {
		t.Fatalf("refresh must re-resolve cached packages, calls=%d", r.callCount("stale"))
	}
	if res.Records[0].License != "MIT" {
		t.Errorf("license = %q, want re-resolved MIT", res.Records[0].License)
	}

	data, found, _ := store.Get(context.Background(), deps.Hash(id))
	if !found {
		t.Fatal("refreshed record must be written back")
	}
	var cached deps.Record
	if err := json.Unmarshal(data, &cached); err != nil {
		t.Fatalf("unmarshal cached record: %v", err)
	}
	if cached.License != "MIT" {
		t.Errorf("cached license = %q, want MIT", cached.License)
	}
}

func TestEngineAtMostOncePerIdentity(t *testing.T) {
	r := newFakeResolver()
	r.add("shared", "1.0.0", "MIT")
	parents := make([]deps.Identity, 0, 8)
	for _, name := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"} {
		r.add(name, "1.0.0", "MIT", ident("shared", "1.0.0"))
		parents = append(parents, ident(name, "1.0.0"))
	}

	eng := New(r, cache.NewNullStore(), Options{Workers: 8})
	res, err := eng.Run(context.Background(), parents)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 9 {
		t.Errorf("records = %d, want 9", len(res.Records))
	}

	shared := 0
	for _, rec := range res.Records {
		if rec.Name == "shared" {
			shared++
		}
	}
	if shared != 1 {
		t.Errorf("shared appears %d times in results, want exactly once", shared)
	}
}

func TestEngineWideGraphUnderConcurrency(t *testing.T) {
	r := newFakeResolver()
	leafs := make([]deps.Identity, 0, 50)
	for i := 0; i < 50; i++ {
		name := "leaf-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		r.add(name, "1.0.0", "MIT")
		leafs = append(leafs, ident(name, "1.0.0"))
	}
	r.add("root", "1.0.0", "MIT", leafs...)

	eng := New(r, cache.NewNullStore(), Options{Workers: 8})
	res, err := eng.Run(context.Background(), []deps.Identity{ident("root", "1.0.0")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 51 {
		t.Errorf("records = %d, want 51", len(res.Records))
	}
}

// seedCache writes a resolved record directly into the store.
func seedCache(t *testing.T, store cache.Store, id deps.Identity, license string, children ...deps.Identity) {
	t.Helper()
	rec := deps.NewRecord(id)
	rec.License = license
	rec.Dependencies = children
	rec.Processed = true
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.Set(context.Background(), deps.Hash(id), data); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
}
