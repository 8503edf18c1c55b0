package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(int) != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	c.SetWithTTL("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCache_GetOrFetch(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	calls := 0
	fetch := func(ctx context.Context) (interface{}, error) {
		calls++
		return "fetched", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(context.Background(), "k", fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.(string) != "fetched" {
			t.Fatalf("unexpected value: %v", v)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

func TestCache_GetOrFetch_ErrorNotCached(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	fetchErr := errors.New("upstream down")
	calls := 0
	fetch := func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, fetchErr
	}

	for i := 0; i < 2; i++ {
		if _, err := c.GetOrFetch(context.Background(), "k", fetch); !errors.Is(err, fetchErr) {
			t.Fatalf("expected fetch error, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected errors to bypass cache, got %d calls", calls)
	}
}
