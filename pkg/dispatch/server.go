package dispatch

import (
	"fmt"
	"time"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/certverify"
	"github.com/nexusgds/pushcore/pkg/channels"
	"github.com/nexusgds/pushcore/pkg/events"
	"github.com/nexusgds/pushcore/pkg/log"
	"github.com/nexusgds/pushcore/pkg/metrics"
	"github.com/nexusgds/pushcore/pkg/session"
	"github.com/nexusgds/pushcore/pkg/trustfile"
	"github.com/nexusgds/pushcore/pkg/txn"
	"github.com/nexusgds/pushcore/pkg/types"
	"github.com/rs/zerolog"
)

// groupState is the per-certificate-group state the dispatcher owns: a
// backing Store and the trust-list virtual-file bookkeeping for it. The
// Transaction Manager and Certificate Verifier are shared across every
// group, so they live on Server instead.
type groupState struct {
	store certstore.Store
	files *trustfile.Manager
}

// Config carries the settings UpdateCertificate's application-URI check
// needs that are not themselves part of any one certificate group.
type Config struct {
	// ApplicationURI is the server's own application instance URI,
	// checked against a candidate ApplCerts certificate's subjectAltName
	// URI entry.
	ApplicationURI string
	// PermissiveURICheck allows a candidate certificate with no URI SAN
	// at all through VerifyApplicationURI, matching certverify.Verifier's
	// same permissive/strict distinction.
	PermissiveURICheck bool
}

// Server is the Push-Management Dispatcher (C5): it binds every method
// spec.md section 4.5 defines to the Certificate Store, Certificate
// Verifier, Trust-List Virtual File, and Transaction Manager components
// for each configured certificate group, enforcing every pre-condition
// before any state changes.
type Server struct {
	cfg      Config
	groups   map[types.Group]*groupState
	txn      *txn.Manager
	verifier *certverify.Verifier
	channels *channels.Registry
	broker   *events.Broker
	log      zerolog.Logger
}

// NewServer returns a Server managing stores, one trust-list file
// Manager per group. verifier, chReg, and broker are shared across every
// group.
func NewServer(cfg Config, stores map[types.Group]certstore.Store, verifier *certverify.Verifier, chReg *channels.Registry, broker *events.Broker) *Server {
	groups := make(map[types.Group]*groupState, len(stores))
	for g, store := range stores {
		groups[g] = &groupState{store: store, files: trustfile.New()}
	}
	return &Server{
		cfg:      cfg,
		groups:   groups,
		txn:      txn.New(),
		verifier: verifier,
		channels: chReg,
		broker:   broker,
		log:      log.WithComponent("dispatch"),
	}
}

func (s *Server) group(g types.Group) (*groupState, error) {
	gs, ok := s.groups[g]
	if !ok {
		return nil, types.NewError("dispatch", types.BadInvalidArgument, fmt.Errorf("unconfigured certificate group %q", g))
	}
	return gs, nil
}

func (s *Server) publish(evtType events.EventType, group types.Group, msg string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{
		Type:    evtType,
		Group:   string(group),
		Message: msg,
	})
}

// GetTrustList returns group's trust list restricted to mask. If the
// pending transaction has staged changes for this group, the staged view
// is returned; no session is checked, so any caller sees those
// uncommitted edits.
func (s *Server) GetTrustList(group types.Group, mask types.TrustListMask) (*types.TrustList, error) {
	gs, err := s.group(group)
	if err != nil {
		return nil, err
	}
	return s.txn.StagedTrustList(group, gs.store, mask)
}

// FileInfo returns group's trust-list file bookkeeping: open handle
// count and last commit time.
func (s *Server) FileInfo(group types.Group) (types.FileInfo, error) {
	gs, err := s.group(group)
	if err != nil {
		return types.FileInfo{}, err
	}
	return gs.files.Info(), nil
}

// ReclaimExpiredSessions is the Session Janitor's (C6) tick function: it
// aborts the global transaction if its owner is no longer live and force
// closes every trust-list file handle belonging to a session that is no
// longer live, for every configured group. It reports whether it
// reclaimed anything.
func (s *Server) ReclaimExpiredSessions(sessions *session.Registry, ttl time.Duration, now time.Time) bool {
	reclaimed := false

	if owner := s.txn.Owner(); owner != "" {
		live, err := sessions.IsLive(owner, ttl, now)
		if err != nil {
			s.log.Warn().Err(err).Msg("janitor: failed to check transaction owner liveness")
		} else if !live {
			if err := s.txn.Abort(); err != nil && types.CodeOf(err) != types.BadNothingToDo {
				s.log.Warn().Err(err).Msg("janitor: failed to abort orphaned transaction")
			} else {
				metrics.JanitorReclamationsTotal.WithLabelValues("transaction").Inc()
				s.log.Info().Str("session_id", owner).Msg("janitor: aborted transaction of a session that is no longer live")
				reclaimed = true
			}
		}
	}

	for group, gs := range s.groups {
		for _, sid := range gs.files.OpenSessions() {
			live, err := sessions.IsLive(sid, ttl, now)
			if err != nil {
				s.log.Warn().Err(err).Msg("janitor: failed to check file-handle session liveness")
				continue
			}
			if live {
				continue
			}
			closed := gs.files.ForceCloseSession(sid)
			if len(closed) == 0 {
				continue
			}
			metrics.JanitorReclamationsTotal.WithLabelValues("file_handle").Add(float64(len(closed)))
			metrics.OpenCount.WithLabelValues(string(group)).Set(float64(gs.files.Info().OpenCount))
			s.log.Info().Str("session_id", sid).Str("group", string(group)).Int("handles", len(closed)).Msg("janitor: force closed trust-list file handles of a session that is no longer live")
			reclaimed = true
		}
	}

	return reclaimed
}
