package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Errorf("Get(missing) = found=%v err=%v, want miss", found, err)
	}

	want := []byte(`{"name":"lodash","license":"MIT"}`)
	if err := store.Set(ctx, "abc123", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, found, err := store.Get(ctx, "abc123")
	if err != nil || !found {
		t.Fatalf("Get = found=%v err=%v", found, err)
	}
	if string(got) != string(want) {
		t.Errorf("Get = %s, want %s", got, want)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "key", []byte("first")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "key", []byte("second")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _, _ := store.Get(ctx, "key")
	if string(got) != "second" {
		t.Errorf("Get after overwrite = %s, want second", got)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
	if err := store.Set(ctx, "key", []byte("data")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "key"); found {
		t.Error("Get after Delete should miss")
	}
}

func TestFileStoreShardsKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, "somekey", []byte("data")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	h := Hash([]byte("somekey"))
	path := filepath.Join(dir, h[:2], h[2:]+".json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected entry at %s: %v", path, err)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := store.Set(ctx, "key", []byte("data")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) != ".json" {
			t.Errorf("leftover temp file: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
}

func TestNullStore(t *testing.T) {
	store := NewNullStore()
	ctx := context.Background()

	if err := store.Set(ctx, "key", []byte("data")); err != nil {
		t.Errorf("Set = %v", err)
	}
	if _, found, err := store.Get(ctx, "key"); found || err != nil {
		t.Errorf("Get = found=%v err=%v, want miss", found, err)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) {
		t.Error("wrapped error should be retryable")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("wrapped error should unwrap to the original")
	}
	if IsRetryable(ErrNotFound) {
		t.Error("bare sentinel should not be retryable")
	}
}

func TestRetryWithBackoffStopsOnTerminalError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for non-retryable error", calls)
	}
}

func TestRetryWithBackoffSucceedsEventually(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrNetwork)
		}
		return nil
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestHash(t *testing.T) {
	a, b := Hash([]byte("payload")), Hash([]byte("payload"))
	if a != b {
		t.Error("Hash should be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("Hash length = %d, want 64", len(a))
	}
	if Hash([]byte("other")) == a {
		t.Error("different inputs should hash differently")
	}
}
