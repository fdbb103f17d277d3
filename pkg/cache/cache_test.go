package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 1*time.Second)
	val, ok := c.Get("key1")
	if !ok || val != "value1" {
		t.Fatalf("expected value1, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 100*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected expired key to return false")
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 1*time.Second)
	c.Delete("key1")
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	c.Set("role:acme:u1", "ADMIN", 1*time.Second)
	c.Set("role:acme:u2", "STAFF", 1*time.Second)
	c.Set("role:globex:u1", "ADMIN", 1*time.Second)
	c.Invalidate("role:acme:")
	_, ok1 := c.Get("role:acme:u1")
	_, ok2 := c.Get("role:acme:u2")
	_, ok3 := c.Get("role:globex:u1")
	if ok1 || ok2 {
		t.Fatalf("expected acme role keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected other tenant's key to still exist")
	}
}
