package scan

import (
	"context"
	"sync"
	"testing"

	"github.com/licenscan/licenscan/pkg/deps"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	q.push(item{id: deps.Identity{Name: "first"}})
	q.push(item{id: deps.Identity{Name: "second"}})

	it, ok := q.pop(context.Background())
	if !ok || it.id.Name != "first" {
		t.Fatalf("pop = %v %v, want first", it.id.Name, ok)
	}
	it, ok = q.pop(context.Background())
	if !ok || it.id.Name != "second" {
		t.Fatalf("pop = %v %v, want second", it.id.Name, ok)
	}
}

func TestQueueEmptyIdleReturnsDone(t *testing.T) {
	q := newQueue()
	if _, ok := q.pop(context.Background()); ok {
		t.Fatal("pop on an empty idle queue should report done")
	}
}

func TestQueueWaitsForInflightWork(t *testing.T) {
	q := newQueue()
	q.push(item{id: deps.Identity{Name: "parent"}})

	it, ok := q.pop(context.Background())
	if !ok {
		t.Fatal("expected parent item")
	}

	// A second consumer must block while the parent is in flight, because
	// processing it may still push children.
	var wg sync.WaitGroup
	wg.Add(1)
	var childName string
	var childOK bool
	go func() {
		defer wg.Done()
		c, ok := q.pop(context.Background())
		childName, childOK = c.id.Name, ok
	}()

	q.push(item{id: deps.Identity{Name: "child"}})
	_ = it
	q.done()
	wg.Wait()

	if !childOK || childName != "child" {
		t.Fatalf("second pop = %q %v, want child", childName, childOK)
	}
	q.done()
	if _, ok := q.pop(context.Background()); ok {
		t.Fatal("queue should be done after all work completes")
	}
}

func TestQueuePopHonorsCancellation(t *testing.T) {
	q := newQueue()
	q.push(item{id: deps.Identity{Name: "held"}})
	if _, ok := q.pop(context.Background()); !ok {
		t.Fatal("expected item")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The held item is in flight, so pop would otherwise spin forever.
	if _, ok := q.pop(ctx); ok {
		t.Fatal("pop must give up on a cancelled context")
	}
}
