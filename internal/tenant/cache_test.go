package tenant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/blooms/internal/site"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sub(label string) site.LookupKey {
	return site.LookupKey{Kind: site.KindSubdomain, Value: label}
}

func testRecord(label string) *site.Record {
	return &site.Record{
		ID:        uuid.New(),
		Subdomain: label,
		Name:      label,
		Published: true,
		Active:    true,
	}
}

func TestMemoryCache_PutGet(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{})
	defer c.Close()
	ctx := context.Background()

	if _, ok := c.Get(ctx, sub("acme")); ok {
		t.Fatal("hit on empty cache")
	}

	rec := testRecord("acme")
	c.Put(ctx, sub("acme"), rec, time.Minute)

	got, ok := c.Get(ctx, sub("acme"))
	if !ok {
		t.Fatal("miss after Put")
	}
	if *got != *rec {
		t.Errorf("got %+v, want %+v", *got, *rec)
	}
}

func TestMemoryCache_KindsAreDistinct(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{})
	defer c.Close()
	ctx := context.Background()

	c.Put(ctx, sub("acme.com"), testRecord("acme"), time.Minute)

	if _, ok := c.Get(ctx, site.LookupKey{Kind: site.KindCustomDomain, Value: "acme.com"}); ok {
		t.Fatal("subdomain entry served a custom-domain key")
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	clk := newFakeClock()
	c := NewMemoryCache(MemoryOptions{Now: clk.Now})
	defer c.Close()
	ctx := context.Background()

	c.Put(ctx, sub("acme"), testRecord("acme"), 10*time.Second)

	clk.Advance(10 * time.Second)
	if _, ok := c.Get(ctx, sub("acme")); !ok {
		t.Fatal("entry should still be live at exactly ttl")
	}

	clk.Advance(time.Second)
	if _, ok := c.Get(ctx, sub("acme")); ok {
		t.Fatal("expired entry served")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("Len = %d after expired read, want 0", n)
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{})
	defer c.Close()
	ctx := context.Background()

	rec := testRecord("acme")
	c.Put(ctx, sub("acme"), rec, time.Minute)
	rec.Name = "mutated by caller"

	got, _ := c.Get(ctx, sub("acme"))
	if got.Name != "acme" {
		t.Errorf("Name = %q; caller mutation leaked into cache", got.Name)
	}
	got.Published = false

	again, _ := c.Get(ctx, sub("acme"))
	if !again.Published {
		t.Error("mutation of a returned record leaked into cache")
	}
}

func TestMemoryCache_LastWriterWins(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{})
	defer c.Close()
	ctx := context.Background()

	first, second := testRecord("acme"), testRecord("acme")
	c.Put(ctx, sub("acme"), first, time.Minute)
	c.Put(ctx, sub("acme"), second, time.Minute)

	got, ok := c.Get(ctx, sub("acme"))
	if !ok {
		t.Fatal("miss after Put")
	}
	if got.ID != second.ID {
		t.Errorf("ID = %s, want %s", got.ID, second.ID)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{MaxEntries: 2})
	defer c.Close()
	ctx := context.Background()

	c.Put(ctx, sub("a"), testRecord("a"), time.Minute)
	c.Put(ctx, sub("b"), testRecord("b"), time.Minute)
	_, _ = c.Get(ctx, sub("a")) // a becomes most recent
	c.Put(ctx, sub("c"), testRecord("c"), time.Minute)

	for label, want := range map[string]bool{"a": true, "b": false, "c": true} {
		if _, ok := c.Get(ctx, sub(label)); ok != want {
			t.Errorf("%s present = %v, want %v", label, ok, want)
		}
	}
}

func TestMemoryCache_NonPositiveTTLIgnored(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{})
	defer c.Close()

	c.Put(context.Background(), sub("acme"), testRecord("acme"), 0)
	c.Put(context.Background(), sub("nil"), nil, time.Minute)
	if n := c.Len(); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	clk := newFakeClock()
	c := NewMemoryCache(MemoryOptions{Now: clk.Now})
	defer c.Close()
	ctx := context.Background()

	c.Put(ctx, sub("short"), testRecord("short"), time.Second)
	c.Put(ctx, sub("long"), testRecord("long"), time.Hour)
	clk.Advance(time.Minute)

	if n := c.sweep(); n != 1 {
		t.Errorf("sweep removed %d, want 1", n)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
	if _, ok := c.Get(ctx, sub("long")); !ok {
		t.Error("live entry swept")
	}
}

func TestMemoryCache_SweeperStopsOnClose(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{SweepInterval: time.Millisecond})
	c.Put(context.Background(), sub("acme"), testRecord("acme"), time.Nanosecond)

	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(MemoryOptions{MaxEntries: 8})
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := string(rune('a' + i%10))
			for j := 0; j < 200; j++ {
				c.Put(ctx, sub(label), testRecord(label), time.Minute)
				if got, ok := c.Get(ctx, sub(label)); ok && got.Subdomain != label {
					t.Errorf("key %s returned site %s", label, got.Subdomain)
				}
			}
		}(i)
	}
	wg.Wait()
	if n := c.Len(); n > 8 {
		t.Fatalf("Len = %d, want <= 8", n)
	}
}

func TestTieredCache(t *testing.T) {
	clk := newFakeClock()
	local := NewMemoryCache(MemoryOptions{Now: clk.Now})
	shared := NewMemoryCache(MemoryOptions{Now: clk.Now})
	defer local.Close()
	defer shared.Close()
	ctx := context.Background()

	tc := NewTieredCache(local, shared, 30*time.Second)

	rec := testRecord("acme")
	tc.Put(ctx, sub("acme"), rec, 5*time.Minute)
	if local.Len() != 1 || shared.Len() != 1 {
		t.Fatalf("Put wrote local=%d shared=%d, want 1 and 1", local.Len(), shared.Len())
	}

	// Local copy expires first; the shared hit back-fills it.
	clk.Advance(time.Minute)
	if _, ok := local.Get(ctx, sub("acme")); ok {
		t.Fatal("local entry outlived its ttl")
	}

	got, ok := tc.Get(ctx, sub("acme"))
	if !ok {
		t.Fatal("shared tier miss")
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %s, want %s", got.ID, rec.ID)
	}
	if n := local.Len(); n != 1 {
		t.Errorf("local not back-filled: Len = %d", n)
	}

	clk.Advance(10 * time.Minute)
	if _, ok := tc.Get(ctx, sub("acme")); ok {
		t.Fatal("entry served past shared ttl")
	}
}
