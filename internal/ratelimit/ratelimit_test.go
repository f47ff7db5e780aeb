package ratelimit

import (
	"testing"
	"time"
)

func TestNoop(t *testing.T) {
	var lim Limiter = Noop{}
	for i := 0; i < 50; i++ {
		if ok, retry := lim.Allow("tg-user:1"); !ok || retry != 0 {
			t.Fatalf("hit %d: got allowed=%v retry=%d", i, ok, retry)
		}
	}
}

func TestInMemory_Allow(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		keys  []string
		want  []bool
	}{
		{"within limit", 3, []string{"a", "a", "a"}, []bool{true, true, true}},
		{"over limit", 2, []string{"a", "a", "a"}, []bool{true, true, false}},
		{"keys independent", 1, []string{"a", "b", "a", "b"}, []bool{true, true, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			lim := NewInMemory(tt.limit, time.Minute)
			lim.nowFunc = func() time.Time { return now }
			for i, key := range tt.keys {
				ok, retry := lim.Allow(key)
				if ok != tt.want[i] {
					t.Errorf("hit %d key=%s: allowed=%v, want %v", i, key, ok, tt.want[i])
				}
				if !ok && retry != 60 {
					t.Errorf("hit %d: expected retry 60, got %d", i, retry)
				}
				now = now.Add(time.Millisecond)
			}
		})
	}
}

func TestInMemory_WindowSlides(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lim := NewInMemory(1, time.Minute)
	lim.nowFunc = func() time.Time { return now }

	if ok, _ := lim.Allow("a"); !ok {
		t.Fatal("expected first hit allowed")
	}
	now = now.Add(30 * time.Second)
	ok, retry := lim.Allow("a")
	if ok {
		t.Fatal("expected second hit inside window rejected")
	}
	if retry != 30 {
		t.Errorf("expected retry 30, got %d", retry)
	}
	now = now.Add(31 * time.Second)
	if ok, _ := lim.Allow("a"); !ok {
		t.Error("expected hit allowed after window passed")
	}
}

func TestInMemory_Prune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	lim := NewInMemory(5, time.Minute)
	lim.nowFunc = func() time.Time { return now }

	lim.Allow("old")
	now = now.Add(50 * time.Second)
	lim.Allow("fresh")
	now = now.Add(20 * time.Second)

	if removed := lim.Prune(); removed != 1 {
		t.Errorf("expected 1 key pruned, got %d", removed)
	}
	if lim.Len() != 1 {
		t.Errorf("expected 1 key left, got %d", lim.Len())
	}
}

func TestKey(t *testing.T) {
	if got := Key("tg-user", 42); got != "tg-user:42" {
		t.Errorf("Key: got %q", got)
	}
	if Key("tg-user", 1) == Key("tg-chat", 1) {
		t.Error("scopes should not collide")
	}
}
