package trustfile

import (
	"sync"
	"time"

	"github.com/nexusgds/pushcore/pkg/types"
)

// Handle identifies one open trust-list file, scoped to the Manager that
// issued it.
type Handle uint32

// fileContext is the per-open-handle bookkeeping: who opened it, in
// which mode, where the cursor sits, and - for a write in progress -
// the bytes accumulated so far.
type fileContext struct {
	handle    Handle
	sessionID string
	mode      types.OpenMode
	cursor    uint64
	buffer    []byte
}

// Manager is the per-group trust-list file state: how many handles are
// currently open and the bookkeeping for each. One Manager exists per
// certificate group.
type Manager struct {
	mu         sync.Mutex
	nextHandle Handle
	contexts   map[Handle]*fileContext
	lastUpdate time.Time
}

// New returns an empty Manager with no open handles.
func New() *Manager {
	return &Manager{contexts: make(map[Handle]*fileContext)}
}

// Info returns a snapshot of the group's FileInfo as seen externally.
func (m *Manager) Info() types.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.FileInfo{OpenCount: len(m.contexts), LastUpdateTime: m.lastUpdate}
}

// Open opens the file for reading (types.OpenModeRead) or for a full-replacement
// write (types.OpenModeWriteErase). For a read, snapshot is produced immediately
// by calling readSnapshot and buffered for subsequent Read calls. For a
// write, readSnapshot is never called: the buffer starts empty and is
// filled by Write.
func (m *Manager) Open(sessionID string, mode types.OpenMode, readSnapshot func() ([]byte, error)) (Handle, error) {
	if mode != types.OpenModeRead && mode != types.OpenModeWriteErase {
		return 0, types.NewError("trustfile.Open", types.BadInvalidArgument, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := &fileContext{sessionID: sessionID, mode: mode}
	if mode == types.OpenModeRead {
		snap, err := readSnapshot()
		if err != nil {
			return 0, err
		}
		ctx.buffer = snap
	}
	return m.register(ctx), nil
}

// OpenWithMasks opens the file for reading a caller-selected subset of the
// four trust-list sub-lists. It never enters write mode: the protocol only
// permits a masked open for reading.
func (m *Manager) OpenWithMasks(sessionID string, readSnapshot func() ([]byte, error)) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := readSnapshot()
	if err != nil {
		return 0, err
	}
	ctx := &fileContext{sessionID: sessionID, mode: types.OpenModeRead, buffer: snap}
	return m.register(ctx), nil
}

func (m *Manager) register(ctx *fileContext) Handle {
	m.nextHandle++
	h := m.nextHandle
	ctx.handle = h
	m.contexts[h] = ctx
	return h
}

func (m *Manager) lookup(handle Handle, sessionID string) (*fileContext, error) {
	ctx, ok := m.contexts[handle]
	if !ok {
		return nil, types.NewError("trustfile", types.BadInvalidArgument, nil)
	}
	if ctx.sessionID != sessionID {
		return nil, types.NewError("trustfile", types.BadUserAccessDenied, nil)
	}
	return ctx, nil
}

// Read returns up to length bytes from handle's buffer starting at its
// current cursor, advancing the cursor by the number of bytes returned.
func (m *Manager) Read(handle Handle, sessionID string, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.lookup(handle, sessionID)
	if err != nil {
		return nil, err
	}
	if ctx.mode != types.OpenModeRead {
		return nil, types.NewError("trustfile.Read", types.BadNotReadable, nil)
	}
	if ctx.cursor >= uint64(len(ctx.buffer)) {
		return nil, nil
	}
	end := ctx.cursor + uint64(length)
	if end > uint64(len(ctx.buffer)) {
		end = uint64(len(ctx.buffer))
	}
	chunk := ctx.buffer[ctx.cursor:end]
	ctx.cursor = end
	out := make([]byte, len(chunk))
	copy(out, chunk)
	return out, nil
}

// Write appends data to handle's buffer, advancing the cursor. The
// buffer is not visible outside the Manager until Close returns it;
// dispatch is responsible for staging it as a transactional change.
func (m *Manager) Write(handle Handle, sessionID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.lookup(handle, sessionID)
	if err != nil {
		return err
	}
	if ctx.mode != types.OpenModeWriteErase {
		return types.NewError("trustfile.Write", types.BadNotWritable, nil)
	}
	ctx.buffer = append(ctx.buffer, data...)
	ctx.cursor += uint64(len(data))
	return nil
}

// GetPosition returns handle's current cursor.
func (m *Manager) GetPosition(handle Handle, sessionID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.lookup(handle, sessionID)
	if err != nil {
		return 0, err
	}
	return ctx.cursor, nil
}

// SetPosition repositions handle's cursor. Only valid for a file opened
// for reading; a write is always a sequential append.
func (m *Manager) SetPosition(handle Handle, sessionID string, pos uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.lookup(handle, sessionID)
	if err != nil {
		return err
	}
	if ctx.mode != types.OpenModeRead {
		return types.NewError("trustfile.SetPosition", types.BadNotWritable, nil)
	}
	ctx.cursor = pos
	return nil
}

// CloseResult is what Close hands back to the dispatcher: the mode the
// handle was opened in and, for a write, the complete accumulated buffer.
type CloseResult struct {
	Mode   types.OpenMode
	Buffer []byte
}

// Close discards handle's bookkeeping and returns its final state. The
// caller (dispatch) decides what a completed write means - normally
// staging a trust-list replacement in the active transaction.
func (m *Manager) Close(handle Handle, sessionID string) (CloseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.lookup(handle, sessionID)
	if err != nil {
		return CloseResult{}, err
	}
	delete(m.contexts, handle)
	return CloseResult{Mode: ctx.mode, Buffer: ctx.buffer}, nil
}

// MarkUpdated records that the group's trust list changed, for Info's
// LastUpdateTime to report. Called by the dispatcher after a commit, not
// by Close itself: a write is only a real update once it commits.
func (m *Manager) MarkUpdated(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdate = at
}

// OpenSessions returns the distinct session IDs that currently hold at
// least one open handle. The janitor uses this to know which sessions
// to check for liveness without scanning every handle itself.
func (m *Manager) OpenSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, ctx := range m.contexts {
		if !seen[ctx.sessionID] {
			seen[ctx.sessionID] = true
			out = append(out, ctx.sessionID)
		}
	}
	return out
}

// ForceCloseSession closes every handle belonging to sessionID, returning
// the handles that were closed. Used by the session janitor when a
// session is found to be gone.
func (m *Manager) ForceCloseSession(sessionID string) []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	var closed []Handle
	for h, ctx := range m.contexts {
		if ctx.sessionID == sessionID {
			closed = append(closed, h)
			delete(m.contexts, h)
		}
	}
	return closed
}
