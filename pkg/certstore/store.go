package certstore

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/nexusgds/pushcore/pkg/types"
)

// Store is the capability set a Certificate Group's backing persistence
// must satisfy. FileStore and MemStore both implement it; the Transaction
// Manager is only ever handed a Store, never a concrete type, so it can
// stage changes against a cloned MemStore and publish them through
// whatever the live store happens to be.
type Store interface {
	GetTrustList(mask types.TrustListMask) (*types.TrustList, error)
	SetTrustList(tl *types.TrustList) error
	AddToTrustList(tl *types.TrustList) error
	RemoveFromTrustList(tl *types.TrustList) error

	GetRejectedList() ([][]byte, error)
	AddToRejectedList(cert []byte) error

	WriteIdentity(oldCert, newCert, newKey []byte) error
	ReadIdentity() (cert, key []byte, err error)

	FindByThumbprint(trusted bool, thumbprint string) ([]byte, error)

	// Clone returns an independent, in-memory copy of the store's current
	// trust-list and identity content. Mutating the clone never affects
	// the original; mutating the original never affects a clone taken
	// earlier. The rejected list is not cloned: rejection is a live-store
	// side effect of verification, not something a transaction stages.
	Clone() Store

	// Clear removes every sub-list and the rejected list. Used by tests.
	Clear() error
}

// Thumbprint renders the uppercase 40-character hex SHA-1 digest of a
// DER-encoded certificate, per spec.md section 3.
func Thumbprint(der []byte) string {
	sum := sha1.Sum(der)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// sameThumbprint compares two thumbprint strings case-insensitively. The
// reference implementation's compareThumbprint lowercases both sides
// before comparing even though thumbprints are conventionally rendered
// uppercase; callers that pass lowercase hex still match.
func sameThumbprint(a, b string) bool {
	return strings.EqualFold(a, b)
}

// containsBytes reports whether set contains an element byte-equal to v.
func containsBytes(set [][]byte, v []byte) bool {
	for _, e := range set {
		if byteEqual(e, v) {
			return true
		}
	}
	return false
}

func byteEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dedupe returns a copy of set with byte-equal duplicates removed,
// keeping the first occurrence.
func dedupe(set [][]byte) [][]byte {
	out := make([][]byte, 0, len(set))
	for _, v := range set {
		if !containsBytes(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// unionInto unions src into dst, skipping elements already present in dst
// by byte equality. Returns the updated slice.
func unionInto(dst, src [][]byte) [][]byte {
	for _, v := range src {
		if !containsBytes(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// subtractFrom removes every element of remove from src by byte equality.
func subtractFrom(src, remove [][]byte) [][]byte {
	if len(remove) == 0 {
		return src
	}
	out := make([][]byte, 0, len(src))
	for _, v := range src {
		if !containsBytes(remove, v) {
			out = append(out, v)
		}
	}
	return out
}

func cloneSet(set [][]byte) [][]byte {
	out := make([][]byte, len(set))
	for i, v := range set {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out
}
