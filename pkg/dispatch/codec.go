package dispatch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nexusgds/pushcore/pkg/types"
)

// EncodeTrustList renders tl as the little-endian, length-prefixed byte
// stream the WRITE/READ file verbs stream a client's trust list through:
// a uint32 count followed by that many (uint32 length, bytes) entries,
// once per sub-list, in TrustedCertificates/TrustedCRLs/
// IssuerCertificates/IssuerCRLs order. This mirrors the Array-of-ByteString
// framing OPC UA Binary uses for every other array field in the protocol,
// scoped down to exactly the four sets a TrustList carries.
func EncodeTrustList(tl *types.TrustList) []byte {
	var buf bytes.Buffer
	writeSet(&buf, tl.TrustedCertificates)
	writeSet(&buf, tl.TrustedCRLs)
	writeSet(&buf, tl.IssuerCertificates)
	writeSet(&buf, tl.IssuerCRLs)
	return buf.Bytes()
}

func writeSet(buf *bytes.Buffer, set [][]byte) {
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(set)))
	buf.Write(count[:])
	for _, item := range set {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(item)))
		buf.Write(length[:])
		buf.Write(item)
	}
}

// DecodeTrustList parses the format EncodeTrustList produces. The
// returned TrustList has SpecifiedLists set to TrustListAll: a decoded
// buffer always carries all four sub-lists, since WRITE is always a
// full-replacement (ERASE_EXISTING) operation.
func DecodeTrustList(data []byte) (*types.TrustList, error) {
	r := bytes.NewReader(data)
	tl := &types.TrustList{SpecifiedLists: types.TrustListAll}

	var err error
	if tl.TrustedCertificates, err = readSet(r); err != nil {
		return nil, fmt.Errorf("decode trusted certificates: %w", err)
	}
	if tl.TrustedCRLs, err = readSet(r); err != nil {
		return nil, fmt.Errorf("decode trusted CRLs: %w", err)
	}
	if tl.IssuerCertificates, err = readSet(r); err != nil {
		return nil, fmt.Errorf("decode issuer certificates: %w", err)
	}
	if tl.IssuerCRLs, err = readSet(r); err != nil {
		return nil, fmt.Errorf("decode issuer CRLs: %w", err)
	}
	return tl, nil
}

func readSet(r *bytes.Reader) ([][]byte, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	set := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, err
		}
		item := make([]byte, length)
		if _, err := io.ReadFull(r, item); err != nil {
			return nil, err
		}
		set = append(set, item)
	}
	return set, nil
}
