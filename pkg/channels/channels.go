package channels

import (
	"sync"
	"time"

	"github.com/nexusgds/pushcore/pkg/types"
)

// ChannelState is the lifecycle state of a registered secure channel.
type ChannelState int

const (
	// ChannelOpen is a channel in normal use.
	ChannelOpen ChannelState = iota
	// ChannelClosing marks a channel the post-commit sweep has requested
	// closed but that has not yet been torn down by the transport layer.
	ChannelClosing
)

// Channel is one open secure channel and the identity that authenticated
// it, which the post-commit sweep needs to decide whether the channel
// survives a trust-list change.
type Channel struct {
	ID                string
	Group             types.Group
	PeerCertificate   []byte
	PeerThumbprint    string
	OpenedAt          time.Time
	State             ChannelState
}

// CloseReason names why RequestClose was called, for metrics.
type CloseReason string

const (
	ReasonTrustListChanged CloseReason = "trust_list_changed"
	ReasonCertificateUntrusted CloseReason = "certificate_untrusted"
	ReasonSessionReclaimed CloseReason = "session_reclaimed"
)

// Registry tracks every open secure channel. Transport code registers a
// channel when it completes the security handshake and unregisters it
// when the transport tears it down; the dispatcher snapshots the
// registry after a commit to decide which channels to invalidate.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Register adds ch to the registry, or replaces the entry for ch.ID if
// one already exists.
func (r *Registry) Register(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID] = ch
}

// Unregister removes id from the registry. Called by the transport once
// a channel is actually torn down.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
}

// Snapshot returns a point-in-time copy of every registered channel, so
// a caller can decide what to close without holding the registry lock
// while it does.
func (r *Registry) Snapshot() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		cp := *ch
		out = append(out, &cp)
	}
	return out
}

// ForGroup returns a snapshot of every channel authenticated against
// group.
func (r *Registry) ForGroup(group types.Group) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Channel
	for _, ch := range r.channels {
		if ch.Group == group {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out
}

// RequestClose marks id as closing. It does not itself tear down the
// channel - that is the transport's job once it observes the state
// change - it only records the intent so a concurrent Snapshot sees it.
func (r *Registry) RequestClose(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		return false
	}
	ch.State = ChannelClosing
	return true
}

// Count returns the number of currently registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
