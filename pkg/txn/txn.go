package txn

import (
	"sync"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/types"
)

// State is the transaction's lifecycle position. The core never has
// more than one transaction in flight: State is global, not per-session.
type State int

const (
	// StateFresh means no changes are staged; the next staging call
	// opens a new transaction.
	StateFresh State = iota
	// StatePending means a transaction is open under an owner session.
	// It may hold no staged change yet (right after Acquire).
	StatePending
)

// CertUpdate is one staged certificate/key replacement for a group's own
// identity.
type CertUpdate struct {
	Group  types.Group
	TypeID types.CertificateTypeID
	Cert   []byte
	Key    []byte
}

// CommitResult reports what Commit actually changed, so the dispatcher
// can decide which groups' secure channels need the post-commit sweep
// and which FileInfo.LastUpdateTime values to bump.
type CommitResult struct {
	TrustListChanged   []types.Group
	CertificateChanged []types.Group
}

// Manager holds the one transaction the core permits at a time: a set of
// per-group staged trust-list snapshots plus a queue of staged identity
// updates, neither of which touch a live Store until Commit.
type Manager struct {
	mu          sync.Mutex
	state       State
	owner       string
	staged      map[types.Group]certstore.Store
	certUpdates []CertUpdate
}

// New returns a Manager with no transaction open.
func New() *Manager {
	return &Manager{state: StateFresh, staged: make(map[types.Group]certstore.Store)}
}

// State returns the current transaction state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Owner returns the session ID that opened the current transaction, or
// the empty string if the transaction is Fresh.
func (m *Manager) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// begin opens the transaction if it is Fresh, adopting sessionID as
// owner. If a transaction is already Pending under a different owner,
// begin refuses: the protocol allows only one party to hold the
// transaction at a time. Must be called with m.mu held.
func (m *Manager) begin(sessionID string) error {
	switch m.state {
	case StateFresh:
		m.state = StatePending
		m.owner = sessionID
		return nil
	case StatePending:
		if m.owner != sessionID {
			return types.NewError("txn", types.BadTransactionPending, nil)
		}
		return nil
	default:
		return types.NewError("txn", types.BadInternalError, nil)
	}
}

// Acquire opens the transaction under sessionID without staging any
// change yet, or confirms sessionID already owns the open transaction.
// OPEN(WRITE) calls this up front so the "no other PENDING transaction"
// precondition is enforced before any bytes are accepted, rather than
// waiting until the first staged write.
func (m *Manager) Acquire(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begin(sessionID)
}

// StagedGroups returns every group with a staged trust-list change or a
// staged certificate update, in no particular order. ApplyChanges uses
// this to check the "no file handles open for any affected group"
// precondition before committing.
func (m *Manager) StagedGroups() []types.Group {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[types.Group]bool)
	var out []types.Group
	for g := range m.staged {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	for _, u := range m.certUpdates {
		if !seen[u.Group] {
			seen[u.Group] = true
			out = append(out, u.Group)
		}
	}
	return out
}

// StageTrustListChange stages one trust-list mutation for group, cloning
// live into the transaction's working snapshot on first touch and
// applying apply to that snapshot from then on. apply is one of
// (*certstore.Store).SetTrustList, AddToTrustList, or
// RemoveFromTrustList bound to the snapshot by the caller.
func (m *Manager) StageTrustListChange(sessionID string, group types.Group, live certstore.Store, apply func(certstore.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(sessionID); err != nil {
		return err
	}
	snap, ok := m.staged[group]
	if !ok {
		snap = live.Clone()
		m.staged[group] = snap
	}
	return apply(snap)
}

// StageCertificateUpdate appends a certificate/key replacement to the
// transaction's queue of identity updates.
func (m *Manager) StageCertificateUpdate(sessionID string, update CertUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(sessionID); err != nil {
		return err
	}
	m.certUpdates = append(m.certUpdates, update)
	return nil
}

// StagedTrustList returns the transaction's in-progress trust list for
// group as seen so far, falling back to live if group has no staged
// changes yet. Used by GetTrustList; it takes no session ID, so every
// caller reading mid-transaction sees the uncommitted writes.
func (m *Manager) StagedTrustList(group types.Group, live certstore.Store, mask types.TrustListMask) (*types.TrustList, error) {
	m.mu.Lock()
	snap, ok := m.staged[group]
	m.mu.Unlock()
	if !ok {
		return live.GetTrustList(mask)
	}
	return snap.GetTrustList(mask)
}

// applyCertUpdateFunc writes one staged CertUpdate to its group's live
// store. The dispatcher supplies this so txn never needs to know how a
// certificate update maps onto Store.WriteIdentity's old/new arguments.
type applyCertUpdateFunc func(store certstore.Store, update CertUpdate) error

// Commit applies every staged trust-list snapshot and certificate
// update to the corresponding live store in groups, then resets the
// transaction to Fresh. Commit is all-or-nothing only in the sense that
// a failure partway through still resets the transaction: there is no
// rollback of writes already applied to live stores, matching the
// reference implementation's behavior of a commit that cannot itself
// fail once the preceding staging calls have already validated their
// input.
func (m *Manager) Commit(groups map[types.Group]certstore.Store, applyCertUpdate applyCertUpdateFunc) (CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending {
		return CommitResult{}, types.NewError("txn.Commit", types.BadNothingToDo, nil)
	}

	var result CommitResult
	for group, snap := range m.staged {
		live, ok := groups[group]
		if !ok {
			continue
		}
		tl, err := snap.GetTrustList(types.TrustListAll)
		if err != nil {
			m.reset()
			return CommitResult{}, err
		}
		if err := live.SetTrustList(tl); err != nil {
			m.reset()
			return CommitResult{}, err
		}
		result.TrustListChanged = append(result.TrustListChanged, group)
	}

	for _, update := range m.certUpdates {
		live, ok := groups[update.Group]
		if !ok {
			continue
		}
		if err := applyCertUpdate(live, update); err != nil {
			m.reset()
			return CommitResult{}, err
		}
		result.CertificateChanged = append(result.CertificateChanged, update.Group)
	}

	m.reset()
	return result, nil
}

// Abort discards every staged change and resets to Fresh. Aborting a
// Fresh transaction is a no-op that reports BadNothingToDo, matching
// Commit's behavior on the same state.
func (m *Manager) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending {
		return types.NewError("txn.Abort", types.BadNothingToDo, nil)
	}
	m.reset()
	return nil
}

// reset clears all staged state and returns to Fresh. Must be called
// with m.mu held.
func (m *Manager) reset() {
	m.state = StateFresh
	m.owner = ""
	m.staged = make(map[types.Group]certstore.Store)
	m.certUpdates = nil
}
