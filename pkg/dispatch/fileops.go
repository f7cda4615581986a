package dispatch

import (
	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/metrics"
	"github.com/nexusgds/pushcore/pkg/trustfile"
	"github.com/nexusgds/pushcore/pkg/types"
)

// Open opens group's trust-list virtual file for sessionID in mode. A
// OpenModeWriteErase open reserves the global transaction for sessionID
// up front, via txn.Manager.Acquire, so the "no other PENDING
// transaction" pre-condition is enforced before any WRITE call is
// accepted rather than only once Close tries to stage the result.
func (s *Server) Open(sessionID string, group types.Group, mode types.OpenMode) (trustfile.Handle, error) {
	gs, err := s.group(group)
	if err != nil {
		return 0, err
	}
	if mode == types.OpenModeWriteErase {
		if err := s.txn.Acquire(sessionID); err != nil {
			return 0, err
		}
	}
	h, err := gs.files.Open(sessionID, mode, func() ([]byte, error) {
		tl, err := gs.store.GetTrustList(types.TrustListAll)
		if err != nil {
			return nil, err
		}
		return EncodeTrustList(tl), nil
	})
	if err != nil {
		return 0, err
	}
	metrics.OpenCount.WithLabelValues(string(group)).Set(float64(gs.files.Info().OpenCount))
	return h, nil
}

// OpenWithMasks opens group's trust-list virtual file for sessionID in
// read mode, restricted to the sub-lists mask selects.
func (s *Server) OpenWithMasks(sessionID string, group types.Group, mask types.TrustListMask) (trustfile.Handle, error) {
	gs, err := s.group(group)
	if err != nil {
		return 0, err
	}
	h, err := gs.files.OpenWithMasks(sessionID, func() ([]byte, error) {
		tl, err := gs.store.GetTrustList(types.TrustListAll)
		if err != nil {
			return nil, err
		}
		return EncodeTrustList(tl.Mask(mask)), nil
	})
	if err != nil {
		return 0, err
	}
	metrics.OpenCount.WithLabelValues(string(group)).Set(float64(gs.files.Info().OpenCount))
	return h, nil
}

// Read returns up to length bytes from handle.
func (s *Server) Read(sessionID string, group types.Group, handle trustfile.Handle, length int) ([]byte, error) {
	gs, err := s.group(group)
	if err != nil {
		return nil, err
	}
	return gs.files.Read(handle, sessionID, length)
}

// Write appends data to handle's pending write buffer.
func (s *Server) Write(sessionID string, group types.Group, handle trustfile.Handle, data []byte) error {
	gs, err := s.group(group)
	if err != nil {
		return err
	}
	return gs.files.Write(handle, sessionID, data)
}

// GetPosition returns handle's current cursor.
func (s *Server) GetPosition(sessionID string, group types.Group, handle trustfile.Handle) (uint64, error) {
	gs, err := s.group(group)
	if err != nil {
		return 0, err
	}
	return gs.files.GetPosition(handle, sessionID)
}

// SetPosition repositions handle's cursor.
func (s *Server) SetPosition(sessionID string, group types.Group, handle trustfile.Handle, pos uint64) error {
	gs, err := s.group(group)
	if err != nil {
		return err
	}
	return gs.files.SetPosition(handle, sessionID, pos)
}

// Close closes handle, discarding any pending write without staging it.
// A write handle closed this way never reaches the transaction: the
// caller must use CloseAndUpdate to actually submit the new trust list.
// If the handle was open for writing, the PENDING transaction it
// reserved (via Open's call to txn.Manager.Acquire) is aborted, per
// spec.md's CLOSE: a write handle that never reaches CloseAndUpdate
// must release the transaction slot, not leave it wedged PENDING with
// nothing staged.
func (s *Server) Close(sessionID string, group types.Group, handle trustfile.Handle) error {
	gs, err := s.group(group)
	if err != nil {
		return err
	}
	result, err := gs.files.Close(handle, sessionID)
	if err != nil {
		return err
	}
	metrics.OpenCount.WithLabelValues(string(group)).Set(float64(gs.files.Info().OpenCount))
	if result.Mode == types.OpenModeWriteErase {
		if abortErr := s.txn.Abort(); abortErr != nil && types.CodeOf(abortErr) != types.BadNothingToDo {
			return abortErr
		}
	}
	return nil
}

// CloseAndUpdate closes handle and, if it was open for writing, stages
// its accumulated buffer as a full trust-list replacement in the active
// transaction. A handle opened for reading is simply closed: there is
// nothing to stage.
func (s *Server) CloseAndUpdate(sessionID string, group types.Group, handle trustfile.Handle) error {
	gs, err := s.group(group)
	if err != nil {
		return err
	}
	result, err := gs.files.Close(handle, sessionID)
	if err != nil {
		return err
	}
	metrics.OpenCount.WithLabelValues(string(group)).Set(float64(gs.files.Info().OpenCount))
	if result.Mode != types.OpenModeWriteErase {
		return nil
	}

	tl, err := DecodeTrustList(result.Buffer)
	if err != nil {
		return types.NewError("dispatch.CloseAndUpdate", types.BadInvalidArgument, err)
	}
	return s.txn.StageTrustListChange(sessionID, group, gs.store, func(staged certstore.Store) error {
		return staged.SetTrustList(tl)
	})
}
