package session

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r, err := Open(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTouchAndIsLive(t *testing.T) {
	r := openTestRegistry(t)
	now := time.Now()

	if err := r.Touch("s1", now); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	live, err := r.IsLive("s1", time.Minute, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("IsLive: %v", err)
	}
	if !live {
		t.Fatalf("expected s1 to be live within TTL")
	}

	live, err = r.IsLive("s1", time.Minute, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("IsLive: %v", err)
	}
	if live {
		t.Fatalf("expected s1 to be expired past TTL")
	}
}

func TestIsLiveUnknownSession(t *testing.T) {
	r := openTestRegistry(t)
	live, err := r.IsLive("unknown", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("IsLive: %v", err)
	}
	if live {
		t.Fatalf("expected an unknown session to never be live")
	}
}

func TestDropRemovesRecord(t *testing.T) {
	r := openTestRegistry(t)
	now := time.Now()
	if err := r.Touch("s1", now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := r.Drop("s1"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	live, err := r.IsLive("s1", time.Hour, now)
	if err != nil {
		t.Fatalf("IsLive: %v", err)
	}
	if live {
		t.Fatalf("expected dropped session to be reported not live")
	}
}

func TestExpiredIDsAndLiveIDs(t *testing.T) {
	r := openTestRegistry(t)
	now := time.Now()
	if err := r.Touch("fresh", now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := r.Touch("stale", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	expired, err := r.ExpiredIDs(time.Minute, now)
	if err != nil {
		t.Fatalf("ExpiredIDs: %v", err)
	}
	if len(expired) != 1 || expired[0] != "stale" {
		t.Fatalf("expected only 'stale' to be expired, got %v", expired)
	}

	live, err := r.LiveIDs(time.Minute, now)
	if err != nil {
		t.Fatalf("LiveIDs: %v", err)
	}
	if len(live) != 1 || live[0] != "fresh" {
		t.Fatalf("expected only 'fresh' to be live, got %v", live)
	}
}
