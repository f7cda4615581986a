package trustfile

import (
	"testing"

	"github.com/nexusgds/pushcore/pkg/types"
)

func TestOpenReadClose(t *testing.T) {
	m := New()
	content := []byte("trust-list-bytes")
	h, err := m.Open("session-1", types.OpenModeRead, func() ([]byte, error) {
		return content, nil
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if info := m.Info(); info.OpenCount != 1 {
		t.Fatalf("expected OpenCount 1, got %d", info.OpenCount)
	}

	chunk, err := m.Read(h, "session-1", 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "trust" {
		t.Fatalf("expected first chunk %q, got %q", "trust", chunk)
	}

	pos, err := m.GetPosition(h, "session-1")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos != 5 {
		t.Fatalf("expected position 5, got %d", pos)
	}

	rest, err := m.Read(h, "session-1", 100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(rest) != "-list-bytes" {
		t.Fatalf("expected remainder %q, got %q", "-list-bytes", rest)
	}

	result, err := m.Close(h, "session-1")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Mode != types.OpenModeRead {
		t.Fatalf("expected ModeRead in close result, got %v", result.Mode)
	}

	if info := m.Info(); info.OpenCount != 0 {
		t.Fatalf("expected OpenCount 0 after close, got %d", info.OpenCount)
	}
}

func TestWriteAccumulatesAndClosesWithBuffer(t *testing.T) {
	m := New()
	h, err := m.Open("session-1", types.OpenModeWriteErase, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Write(h, "session-1", []byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.Write(h, "session-1", []byte("def")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := m.Close(h, "session-1")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if string(result.Buffer) != "abcdef" {
		t.Fatalf("expected accumulated buffer %q, got %q", "abcdef", result.Buffer)
	}
}

func TestReadRejectsWriteHandle(t *testing.T) {
	m := New()
	h, err := m.Open("session-1", types.OpenModeWriteErase, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := m.Read(h, "session-1", 10); err == nil {
		t.Fatalf("expected Read on a write handle to fail")
	}
}

func TestWrongSessionIsDenied(t *testing.T) {
	m := New()
	h, err := m.Open("session-1", types.OpenModeRead, func() ([]byte, error) { return []byte("x"), nil })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := m.Read(h, "session-2", 1); err == nil {
		t.Fatalf("expected Read from a different session to be denied")
	}
}

func TestSetPositionOnReadHandle(t *testing.T) {
	m := New()
	h, err := m.Open("session-1", types.OpenModeRead, func() ([]byte, error) { return []byte("0123456789"), nil })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.SetPosition(h, "session-1", 5); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	chunk, err := m.Read(h, "session-1", 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "567" {
		t.Fatalf("expected %q after seek, got %q", "567", chunk)
	}
}

func TestOpenWithMasksIsAlwaysRead(t *testing.T) {
	m := New()
	h, err := m.OpenWithMasks("session-1", func() ([]byte, error) { return []byte("masked"), nil })
	if err != nil {
		t.Fatalf("OpenWithMasks: %v", err)
	}
	if err := m.Write(h, "session-1", []byte("x")); err == nil {
		t.Fatalf("expected Write on a masked-open handle to fail")
	}
}

func TestForceCloseSessionClosesOnlyThatSessionsHandles(t *testing.T) {
	m := New()
	h1, _ := m.Open("session-1", types.OpenModeRead, func() ([]byte, error) { return []byte("a"), nil })
	_, _ = m.Open("session-2", types.OpenModeRead, func() ([]byte, error) { return []byte("b"), nil })

	closed := m.ForceCloseSession("session-1")
	if len(closed) != 1 || closed[0] != h1 {
		t.Fatalf("expected only session-1's handle closed, got %v", closed)
	}
	if info := m.Info(); info.OpenCount != 1 {
		t.Fatalf("expected 1 handle remaining, got %d", info.OpenCount)
	}
}
