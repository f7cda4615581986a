package dispatch

import (
	"fmt"
	"time"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/certverify"
	"github.com/nexusgds/pushcore/pkg/channels"
	"github.com/nexusgds/pushcore/pkg/events"
	"github.com/nexusgds/pushcore/pkg/metrics"
	"github.com/nexusgds/pushcore/pkg/txn"
	"github.com/nexusgds/pushcore/pkg/types"
)

// ApplyChanges commits the active transaction. It refuses unless: a
// transaction is actually Pending with at least one staged change
// (otherwise BadNothingToDo), sessionID is the transaction's owner,
// and no trust-list file handle is open for any group the transaction
// touches - an open handle on an affected group means some other
// exchange is still reading or writing a snapshot that commit is about
// to invalidate. On success it runs the post-commit secure-channel
// sweep for every affected group.
func (s *Server) ApplyChanges(sessionID string) error {
	if s.txn.State() != txn.StatePending {
		return types.NewError("dispatch.ApplyChanges", types.BadNothingToDo, fmt.Errorf("no transaction is pending"))
	}
	if s.txn.Owner() != sessionID {
		return types.NewError("dispatch.ApplyChanges", types.BadUserAccessDenied, fmt.Errorf("transaction is owned by a different session"))
	}
	staged := s.txn.StagedGroups()
	if len(staged) == 0 {
		return types.NewError("dispatch.ApplyChanges", types.BadNothingToDo, fmt.Errorf("no changes staged"))
	}

	for _, group := range staged {
		gs, err := s.group(group)
		if err != nil {
			return err
		}
		if gs.files.Info().OpenCount > 0 {
			return types.NewError("dispatch.ApplyChanges", types.BadInvalidState, fmt.Errorf("group %q has an open trust-list file handle", group))
		}
	}

	timer := metrics.NewTimer()
	stores := make(map[types.Group]certstore.Store, len(s.groups))
	for g, gs := range s.groups {
		stores[g] = gs.store
	}
	result, err := s.txn.Commit(stores, applyCertUpdate)
	timer.ObserveDuration(metrics.CommitDuration)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, group := range result.TrustListChanged {
		if gs, ok := s.groups[group]; ok {
			gs.files.MarkUpdated(now)
			metrics.LastUpdateTime.WithLabelValues(string(group)).Set(float64(now.Unix()))
		}
	}
	for _, group := range result.CertificateChanged {
		if gs, ok := s.groups[group]; ok {
			gs.files.MarkUpdated(now)
			metrics.LastUpdateTime.WithLabelValues(string(group)).Set(float64(now.Unix()))
		}
	}

	s.publish(events.EventTransactionCommitted, "", "transaction committed")
	s.postCommitSweep(result)
	return nil
}

// postCommitSweep invalidates secure channels affected by a commit, per
// spec.md's two-branch rule: a group whose certificate or key changed
// has every one of its channels closed unconditionally, since the
// identity those channels authenticated under may no longer be valid at
// all. A group whose trust list changed but whose own certificate did
// not is swept selectively: each channel's peer certificate is
// re-verified against the new trust list, and only the channels that no
// longer verify as Trusted are closed.
func (s *Server) postCommitSweep(result txn.CommitResult) {
	certChanged := make(map[types.Group]bool, len(result.CertificateChanged))
	for _, g := range result.CertificateChanged {
		certChanged[g] = true
	}

	for _, group := range result.TrustListChanged {
		if certChanged[group] {
			continue
		}
		gs, ok := s.groups[group]
		if !ok {
			continue
		}
		tl, err := gs.store.GetTrustList(types.TrustListAll)
		if err != nil {
			s.log.Warn().Err(err).Str("group", string(group)).Msg("post-commit sweep: failed to read trust list")
			continue
		}
		for _, ch := range s.channels.ForGroup(group) {
			outcome, err := s.verifier.Verify(ch.PeerCertificate, tl)
			metrics.VerificationsTotal.WithLabelValues(string(group), outcome.String()).Inc()
			if err != nil || outcome != certverify.OutcomeTrusted {
				s.log.Warn().Err(err).Str("group", string(group)).Str("outcome", outcome.String()).Msg("post-commit sweep: certificate verification failed")
				if addErr := gs.store.AddToRejectedList(ch.PeerCertificate); addErr != nil {
					s.log.Warn().Err(addErr).Str("group", string(group)).Msg("failed to record rejected certificate")
				} else if rejected, listErr := gs.store.GetRejectedList(); listErr == nil {
					metrics.RejectedListSize.WithLabelValues(string(group)).Set(float64(len(rejected)))
				}
				s.closeChannel(ch, channels.ReasonTrustListChanged)
			}
		}
	}

	for group := range certChanged {
		for _, ch := range s.channels.ForGroup(group) {
			s.closeChannel(ch, channels.ReasonCertificateUntrusted)
		}
	}
}

func (s *Server) closeChannel(ch *channels.Channel, reason channels.CloseReason) {
	if !s.channels.RequestClose(ch.ID) {
		return
	}
	metrics.ChannelsClosedTotal.WithLabelValues(string(reason)).Inc()
	s.publish(events.EventChannelClosed, ch.Group, fmt.Sprintf("channel %s closed: %s", ch.ID, reason))
}
