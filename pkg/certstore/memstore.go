package certstore

import (
	"fmt"
	"sync"

	"github.com/nexusgds/pushcore/pkg/types"
)

// MemStore is an in-memory Store. It backs Clone() snapshots taken while
// a transaction is staged, and is used directly in tests that don't need
// filesystem durability. Its rejected list is capped at
// MaxRejectedEntries, dropping the oldest entry first, like FileStore's.
type MemStore struct {
	mu sync.RWMutex

	trustedCertificates [][]byte
	trustedCRLs         [][]byte
	issuerCertificates  [][]byte
	issuerCRLs          [][]byte
	rejected            [][]byte

	ownCert []byte
	ownKey  []byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// GetTrustList implements Store.
func (s *MemStore) GetTrustList(mask types.TrustListMask) (*types.TrustList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl := &types.TrustList{SpecifiedLists: mask}
	if mask.Has(types.TrustListTrustedCertificates) {
		tl.TrustedCertificates = cloneSet(s.trustedCertificates)
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		tl.TrustedCRLs = cloneSet(s.trustedCRLs)
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		tl.IssuerCertificates = cloneSet(s.issuerCertificates)
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		tl.IssuerCRLs = cloneSet(s.issuerCRLs)
	}
	return tl, nil
}

// SetTrustList implements Store.
func (s *MemStore) SetTrustList(tl *types.TrustList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mask := tl.SpecifiedLists
	if mask.Has(types.TrustListTrustedCertificates) {
		s.trustedCertificates = dedupe(cloneSet(tl.TrustedCertificates))
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		s.trustedCRLs = dedupe(cloneSet(tl.TrustedCRLs))
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		s.issuerCertificates = dedupe(cloneSet(tl.IssuerCertificates))
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		s.issuerCRLs = dedupe(cloneSet(tl.IssuerCRLs))
	}
	return nil
}

// AddToTrustList implements Store.
func (s *MemStore) AddToTrustList(tl *types.TrustList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mask := tl.SpecifiedLists
	if mask.Has(types.TrustListTrustedCertificates) {
		s.trustedCertificates = unionInto(s.trustedCertificates, tl.TrustedCertificates)
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		s.trustedCRLs = unionInto(s.trustedCRLs, tl.TrustedCRLs)
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		s.issuerCertificates = unionInto(s.issuerCertificates, tl.IssuerCertificates)
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		s.issuerCRLs = unionInto(s.issuerCRLs, tl.IssuerCRLs)
	}
	return nil
}

// RemoveFromTrustList implements Store.
func (s *MemStore) RemoveFromTrustList(tl *types.TrustList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mask := tl.SpecifiedLists
	if mask.Has(types.TrustListTrustedCertificates) {
		s.trustedCertificates = subtractFrom(s.trustedCertificates, tl.TrustedCertificates)
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		s.trustedCRLs = subtractFrom(s.trustedCRLs, tl.TrustedCRLs)
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		s.issuerCertificates = subtractFrom(s.issuerCertificates, tl.IssuerCertificates)
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		s.issuerCRLs = subtractFrom(s.issuerCRLs, tl.IssuerCRLs)
	}
	return nil
}

// GetRejectedList implements Store.
func (s *MemStore) GetRejectedList() ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSet(s.rejected), nil
}

// AddToRejectedList implements Store.
func (s *MemStore) AddToRejectedList(cert []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if containsBytes(s.rejected, cert) {
		return nil
	}
	s.rejected = append(s.rejected, append([]byte(nil), cert...))
	if len(s.rejected) > MaxRejectedEntries {
		s.rejected = s.rejected[len(s.rejected)-MaxRejectedEntries:]
	}
	return nil
}

// WriteIdentity implements Store.
func (s *MemStore) WriteIdentity(oldCert, newCert, newKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownCert = append([]byte(nil), newCert...)
	s.ownKey = append([]byte(nil), newKey...)
	return nil
}

// ReadIdentity implements Store.
func (s *MemStore) ReadIdentity() ([]byte, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ownCert == nil {
		return nil, nil, types.NewError("certstore.ReadIdentity", types.BadInvalidState,
			fmt.Errorf("no identity has been provisioned for this group"))
	}
	return append([]byte(nil), s.ownCert...), append([]byte(nil), s.ownKey...), nil
}

// FindByThumbprint implements Store.
func (s *MemStore) FindByThumbprint(trusted bool, thumbprint string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.issuerCertificates
	if trusted {
		set = s.trustedCertificates
	}
	for _, c := range set {
		if sameThumbprint(Thumbprint(c), thumbprint) {
			return append([]byte(nil), c...), nil
		}
	}
	return nil, nil
}

// Clone implements Store.
func (s *MemStore) Clone() Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &MemStore{
		trustedCertificates: cloneSet(s.trustedCertificates),
		trustedCRLs:         cloneSet(s.trustedCRLs),
		issuerCertificates:  cloneSet(s.issuerCertificates),
		issuerCRLs:          cloneSet(s.issuerCRLs),
		ownCert:             append([]byte(nil), s.ownCert...),
		ownKey:              append([]byte(nil), s.ownKey...),
	}
}

// Clear implements Store.
func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trustedCertificates = nil
	s.trustedCRLs = nil
	s.issuerCertificates = nil
	s.issuerCRLs = nil
	s.rejected = nil
	s.ownCert = nil
	s.ownKey = nil
	return nil
}
