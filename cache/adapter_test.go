package cache

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[string](time.Minute, 0)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 1 {
		t.Fatalf("expired entry should stay until swept, len=%d", c.Len())
	}

	c.sweep()
	if c.Len() != 0 {
		t.Fatalf("sweep left %d entries", c.Len())
	}
}

func TestTTLDelete(t *testing.T) {
	c := NewTTL[int](time.Minute, 0)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to be deleted")
	}
}

func TestTTLCloseStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewTTL[int](time.Millisecond, time.Millisecond)
	c.Set("a", 1)
	time.Sleep(10 * time.Millisecond)
	c.Close()
	c.Close()
}
