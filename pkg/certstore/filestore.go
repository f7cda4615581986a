package certstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nexusgds/pushcore/pkg/types"
)

// FileStore is a filesystem-backed Store. Each trust-list sub-list is a
// directory of DER-encoded ".der"/".crl" files named by certificate
// thumbprint; rejected certificates get a random 40-hex-character name; the
// group's own identity lives under own/certs and own/private. This
// generalizes the teacher's bucket-per-concern layout in
// pkg/storage/boltdb.go - one BoltDB bucket per concern there, one
// directory per concern here - since a Certificate Store's natural unit
// is a file, not a key/value record.
type FileStore struct {
	mu   sync.RWMutex
	root string // the directory passed to NewFileStore
}

const (
	dirTrustedCerts = "trusted/certs"
	dirTrustedCRLs  = "trusted/crl"
	dirIssuerCerts  = "issuer/certs"
	dirIssuerCRLs   = "issuer/crl"
	dirRejected     = "rejected/certs"
	dirOwnCerts     = "own/certs"
	dirOwnPrivate   = "own/private"
)

var allStoreDirs = []string{
	dirTrustedCerts, dirTrustedCRLs, dirIssuerCerts, dirIssuerCRLs,
	dirRejected, dirOwnCerts, dirOwnPrivate,
}

// NewFileStore opens (creating if necessary) a FileStore rooted at root.
func NewFileStore(root string) (*FileStore, error) {
	for _, d := range allStoreDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o777); err != nil {
			return nil, types.NewError("certstore.NewFileStore", types.BadInternalError, err)
		}
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) dir(d string) string {
	return filepath.Join(s.root, d)
}

func readDERDir(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func writeDERDir(dir string, items [][]byte, ext string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	for _, item := range items {
		name := Thumbprint(item) + ext
		if err := os.WriteFile(filepath.Join(dir, name), item, 0o666); err != nil {
			return err
		}
	}
	return nil
}

// GetTrustList implements Store.
func (s *FileStore) GetTrustList(mask types.TrustListMask) (*types.TrustList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl := &types.TrustList{SpecifiedLists: mask}
	var err error
	if mask.Has(types.TrustListTrustedCertificates) {
		if tl.TrustedCertificates, err = readDERDir(s.dir(dirTrustedCerts)); err != nil {
			return nil, types.NewError("certstore.GetTrustList", types.BadInternalError, err)
		}
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		if tl.TrustedCRLs, err = readDERDir(s.dir(dirTrustedCRLs)); err != nil {
			return nil, types.NewError("certstore.GetTrustList", types.BadInternalError, err)
		}
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		if tl.IssuerCertificates, err = readDERDir(s.dir(dirIssuerCerts)); err != nil {
			return nil, types.NewError("certstore.GetTrustList", types.BadInternalError, err)
		}
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		if tl.IssuerCRLs, err = readDERDir(s.dir(dirIssuerCRLs)); err != nil {
			return nil, types.NewError("certstore.GetTrustList", types.BadInternalError, err)
		}
	}
	return tl, nil
}

// SetTrustList implements Store: it replaces every sub-list named by
// tl.SpecifiedLists wholesale, leaving sub-lists not named untouched.
func (s *FileStore) SetTrustList(tl *types.TrustList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mask := tl.SpecifiedLists
	if mask.Has(types.TrustListTrustedCertificates) {
		if err := writeDERDir(s.dir(dirTrustedCerts), dedupe(tl.TrustedCertificates), ".der"); err != nil {
			return types.NewError("certstore.SetTrustList", types.BadInternalError, err)
		}
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		if err := writeDERDir(s.dir(dirTrustedCRLs), dedupe(tl.TrustedCRLs), ".crl"); err != nil {
			return types.NewError("certstore.SetTrustList", types.BadInternalError, err)
		}
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		if err := writeDERDir(s.dir(dirIssuerCerts), dedupe(tl.IssuerCertificates), ".der"); err != nil {
			return types.NewError("certstore.SetTrustList", types.BadInternalError, err)
		}
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		if err := writeDERDir(s.dir(dirIssuerCRLs), dedupe(tl.IssuerCRLs), ".crl"); err != nil {
			return types.NewError("certstore.SetTrustList", types.BadInternalError, err)
		}
	}
	return nil
}

// AddToTrustList implements Store: unions each named sub-list in tl into
// the corresponding on-disk sub-list.
func (s *FileStore) AddToTrustList(tl *types.TrustList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mask := tl.SpecifiedLists
	if mask.Has(types.TrustListTrustedCertificates) {
		if err := s.unionDir(dirTrustedCerts, tl.TrustedCertificates, ".der"); err != nil {
			return err
		}
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		if err := s.unionDir(dirTrustedCRLs, tl.TrustedCRLs, ".crl"); err != nil {
			return err
		}
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		if err := s.unionDir(dirIssuerCerts, tl.IssuerCertificates, ".der"); err != nil {
			return err
		}
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		if err := s.unionDir(dirIssuerCRLs, tl.IssuerCRLs, ".crl"); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) unionDir(d string, add [][]byte, ext string) error {
	existing, err := readDERDir(s.dir(d))
	if err != nil {
		return types.NewError("certstore.AddToTrustList", types.BadInternalError, err)
	}
	merged := unionInto(existing, add)
	if err := writeDERDir(s.dir(d), merged, ext); err != nil {
		return types.NewError("certstore.AddToTrustList", types.BadInternalError, err)
	}
	return nil
}

// RemoveFromTrustList implements Store: subtracts each named sub-list in
// tl from the corresponding on-disk sub-list.
func (s *FileStore) RemoveFromTrustList(tl *types.TrustList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mask := tl.SpecifiedLists
	if mask.Has(types.TrustListTrustedCertificates) {
		if err := s.subtractDir(dirTrustedCerts, tl.TrustedCertificates, ".der"); err != nil {
			return err
		}
	}
	if mask.Has(types.TrustListTrustedCRLs) {
		if err := s.subtractDir(dirTrustedCRLs, tl.TrustedCRLs, ".crl"); err != nil {
			return err
		}
	}
	if mask.Has(types.TrustListIssuerCertificates) {
		if err := s.subtractDir(dirIssuerCerts, tl.IssuerCertificates, ".der"); err != nil {
			return err
		}
	}
	if mask.Has(types.TrustListIssuerCRLs) {
		if err := s.subtractDir(dirIssuerCRLs, tl.IssuerCRLs, ".crl"); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) subtractDir(d string, remove [][]byte, ext string) error {
	existing, err := readDERDir(s.dir(d))
	if err != nil {
		return types.NewError("certstore.RemoveFromTrustList", types.BadInternalError, err)
	}
	remaining := subtractFrom(existing, remove)
	if err := writeDERDir(s.dir(d), remaining, ext); err != nil {
		return types.NewError("certstore.RemoveFromTrustList", types.BadInternalError, err)
	}
	return nil
}

// GetRejectedList implements Store.
func (s *FileStore) GetRejectedList() ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certs, err := readDERDir(s.dir(dirRejected))
	if err != nil {
		return nil, types.NewError("certstore.GetRejectedList", types.BadInternalError, err)
	}
	return certs, nil
}

// MaxRejectedEntries bounds the rejected list; the oldest entry is
// evicted FIFO-by-mtime once the bound is exceeded, per spec.md section
// 4.1's note that the rejected list is not unbounded.
const MaxRejectedEntries = 128

// AddToRejectedList implements Store, evicting the oldest entry once the
// list exceeds MaxRejectedEntries. A certificate already on the list
// (byte-for-byte) is not written again; a new one is stored under a
// random 40-hex-character file name.
func (s *FileStore) AddToRejectedList(cert []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.dir(dirRejected)
	existing, err := readDERDir(dir)
	if err != nil {
		return types.NewError("certstore.AddToRejectedList", types.BadInternalError, err)
	}
	if containsBytes(existing, cert) {
		return nil
	}
	var prefix [20]byte
	if _, err := rand.Read(prefix[:]); err != nil {
		return types.NewError("certstore.AddToRejectedList", types.BadInternalError, err)
	}
	name := hex.EncodeToString(prefix[:]) + ".der"
	if err := os.WriteFile(filepath.Join(dir, name), cert, 0o666); err != nil {
		return types.NewError("certstore.AddToRejectedList", types.BadInternalError, err)
	}
	return s.evictOldestRejected(dir)
}

func (s *FileStore) evictOldestRejected(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.NewError("certstore.AddToRejectedList", types.BadInternalError, err)
	}
	if len(entries) <= MaxRejectedEntries {
		return nil
	}
	var oldestName string
	var oldestTime int64
	for i, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		mtime := info.ModTime().UnixNano()
		if i == 0 || mtime < oldestTime {
			oldestTime = mtime
			oldestName = e.Name()
		}
	}
	if oldestName == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(dir, oldestName)); err != nil {
		return types.NewError("certstore.AddToRejectedList", types.BadInternalError, err)
	}
	return nil
}

// WriteIdentity implements Store, replacing the group's own certificate
// and key. oldCert is accepted for symmetry with the in-memory store and
// is not otherwise consulted; the write always replaces whatever is
// currently on disk.
func (s *FileStore) WriteIdentity(oldCert, newCert, newKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	certDir := s.dir(dirOwnCerts)
	keyDir := s.dir(dirOwnPrivate)
	if err := os.RemoveAll(certDir); err != nil {
		return types.NewError("certstore.WriteIdentity", types.BadInternalError, err)
	}
	if err := os.RemoveAll(keyDir); err != nil {
		return types.NewError("certstore.WriteIdentity", types.BadInternalError, err)
	}
	if err := os.MkdirAll(certDir, 0o777); err != nil {
		return types.NewError("certstore.WriteIdentity", types.BadInternalError, err)
	}
	if err := os.MkdirAll(keyDir, 0o777); err != nil {
		return types.NewError("certstore.WriteIdentity", types.BadInternalError, err)
	}
	if err := os.WriteFile(filepath.Join(certDir, "identity.der"), newCert, 0o666); err != nil {
		return types.NewError("certstore.WriteIdentity", types.BadInternalError, err)
	}
	if err := os.WriteFile(filepath.Join(keyDir, "identity.key"), newKey, 0o600); err != nil {
		return types.NewError("certstore.WriteIdentity", types.BadInternalError, err)
	}
	return nil
}

// ReadIdentity implements Store.
func (s *FileStore) ReadIdentity() ([]byte, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, err := os.ReadFile(filepath.Join(s.dir(dirOwnCerts), "identity.der"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, types.NewError("certstore.ReadIdentity", types.BadInvalidState,
				fmt.Errorf("no identity has been provisioned for this group"))
		}
		return nil, nil, types.NewError("certstore.ReadIdentity", types.BadInternalError, err)
	}
	key, err := os.ReadFile(filepath.Join(s.dir(dirOwnPrivate), "identity.key"))
	if err != nil {
		return nil, nil, types.NewError("certstore.ReadIdentity", types.BadInternalError, err)
	}
	return cert, key, nil
}

// FindByThumbprint implements Store, searching the trusted-certificates
// list when trusted is true and the issuer-certificates list otherwise,
// per the reference implementation's AddCertificate/RemoveCertificate
// precondition walk.
func (s *FileStore) FindByThumbprint(trusted bool, thumbprint string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := dirIssuerCerts
	if trusted {
		dir = dirTrustedCerts
	}
	certs, err := readDERDir(s.dir(dir))
	if err != nil {
		return nil, types.NewError("certstore.FindByThumbprint", types.BadInternalError, err)
	}
	for _, c := range certs {
		if sameThumbprint(Thumbprint(c), thumbprint) {
			return c, nil
		}
	}
	return nil, nil
}

// Clone implements Store, returning an in-memory snapshot of the
// store's current trust-list and identity content.
func (s *FileStore) Clone() Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, _ := s.unsafeReadAll()
	cert, key, _ := s.unsafeReadIdentity()
	return &MemStore{
		trustedCertificates: cloneSet(tl.TrustedCertificates),
		trustedCRLs:         cloneSet(tl.TrustedCRLs),
		issuerCertificates:  cloneSet(tl.IssuerCertificates),
		issuerCRLs:          cloneSet(tl.IssuerCRLs),
		ownCert:             append([]byte(nil), cert...),
		ownKey:              append([]byte(nil), key...),
	}
}

func (s *FileStore) unsafeReadAll() (*types.TrustList, error) {
	tl := &types.TrustList{SpecifiedLists: types.TrustListAll}
	var err error
	if tl.TrustedCertificates, err = readDERDir(s.dir(dirTrustedCerts)); err != nil {
		return tl, err
	}
	if tl.TrustedCRLs, err = readDERDir(s.dir(dirTrustedCRLs)); err != nil {
		return tl, err
	}
	if tl.IssuerCertificates, err = readDERDir(s.dir(dirIssuerCerts)); err != nil {
		return tl, err
	}
	if tl.IssuerCRLs, err = readDERDir(s.dir(dirIssuerCRLs)); err != nil {
		return tl, err
	}
	return tl, nil
}

func (s *FileStore) unsafeReadIdentity() ([]byte, []byte, error) {
	cert, err := os.ReadFile(filepath.Join(s.dir(dirOwnCerts), "identity.der"))
	if err != nil {
		return nil, nil, err
	}
	key, err := os.ReadFile(filepath.Join(s.dir(dirOwnPrivate), "identity.key"))
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

// Clear implements Store, used by tests to reset a FileStore between
// cases without recreating it.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range allStoreDirs {
		if err := os.RemoveAll(s.dir(d)); err != nil {
			return types.NewError("certstore.Clear", types.BadInternalError, err)
		}
		if err := os.MkdirAll(s.dir(d), 0o777); err != nil {
			return types.NewError("certstore.Clear", types.BadInternalError, err)
		}
	}
	return nil
}
