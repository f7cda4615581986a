package dispatch

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nexusgds/pushcore/pkg/session"
	"github.com/nexusgds/pushcore/pkg/types"
)

func openTestSessions(t *testing.T) *session.Registry {
	t.Helper()
	reg, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestReclaimExpiredSessionsAbortsOrphanedTransaction(t *testing.T) {
	srv, _ := newTestServer(t)
	sessions := openTestSessions(t)
	now := time.Now()

	if err := sessions.Touch("session-1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase); err != nil {
		t.Fatalf("Open: %v", err)
	}

	reclaimed := srv.ReclaimExpiredSessions(sessions, time.Minute, now)
	if !reclaimed {
		t.Fatalf("expected the janitor to report reclaiming the orphaned transaction")
	}
	if srv.txn.Owner() != "" {
		t.Fatalf("expected the transaction to be aborted, owner still %q", srv.txn.Owner())
	}
}

func TestReclaimExpiredSessionsForceClosesStaleFileHandles(t *testing.T) {
	srv, _ := newTestServer(t)
	sessions := openTestSessions(t)
	now := time.Now()

	if err := sessions.Touch("reader-1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	handle, err := srv.Open("reader-1", types.GroupApplication, types.OpenModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	reclaimed := srv.ReclaimExpiredSessions(sessions, time.Minute, now)
	if !reclaimed {
		t.Fatalf("expected the janitor to report reclaiming the stale file handle")
	}

	info, err := srv.FileInfo(types.GroupApplication)
	if err != nil {
		t.Fatalf("FileInfo: %v", err)
	}
	if info.OpenCount != 0 {
		t.Fatalf("expected open count to drop to 0, got %d", info.OpenCount)
	}

	if _, err := srv.Read("reader-1", types.GroupApplication, handle, 1); err == nil {
		t.Fatalf("expected the reclaimed handle to be gone")
	}
}

func TestReclaimExpiredSessionsLeavesLiveWorkAlone(t *testing.T) {
	srv, _ := newTestServer(t)
	sessions := openTestSessions(t)
	now := time.Now()

	if err := sessions.Touch("session-1", now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase); err != nil {
		t.Fatalf("Open: %v", err)
	}

	reclaimed := srv.ReclaimExpiredSessions(sessions, time.Minute, now)
	if reclaimed {
		t.Fatalf("expected a live session's transaction and handles to be left alone")
	}
	if srv.txn.Owner() != "session-1" {
		t.Fatalf("expected the transaction to remain owned by session-1, got %q", srv.txn.Owner())
	}
}
