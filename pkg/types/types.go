package types

import (
	"time"
)

// Group identifies a certificate group - a named identity scope owning one
// Certificate Store, one rejected list, and one FileInfo.
type Group string

const (
	// GroupApplication is the TLS/secure-channel identity group.
	GroupApplication Group = "ApplCerts"
	// GroupHTTP is the HTTPS identity group, symmetric with GroupApplication.
	GroupHTTP Group = "HttpCerts"
	// GroupUserToken validates session tokens.
	GroupUserToken Group = "UserTokenCerts"
)

// CertificateTypeID names a certificate/key scheme a group accepts.
type CertificateTypeID string

const (
	CertificateTypeRsaMin    CertificateTypeID = "RsaMin"
	CertificateTypeRsaSha256 CertificateTypeID = "RsaSha256"
)

// KeyFormat names the encoding of a private key submitted alongside a
// certificate update.
type KeyFormat string

const (
	KeyFormatPEM KeyFormat = "PEM"
	KeyFormatPFX KeyFormat = "PFX"
)

// TrustListMask selects which of a TrustList's four sub-lists are
// meaningful on a given value. Bits combine with bitwise OR.
type TrustListMask uint32

const (
	TrustListNone              TrustListMask = 0
	TrustListTrustedCertificates TrustListMask = 1 << 0
	TrustListTrustedCRLs       TrustListMask = 1 << 1
	TrustListIssuerCertificates TrustListMask = 1 << 2
	TrustListIssuerCRLs        TrustListMask = 1 << 3
	TrustListAll               TrustListMask = TrustListTrustedCertificates |
		TrustListTrustedCRLs | TrustListIssuerCertificates | TrustListIssuerCRLs
)

// Has reports whether mask selects sub.
func (m TrustListMask) Has(sub TrustListMask) bool {
	return m&sub != 0
}

// TrustList is the four-set bundle the spec defines: trusted certificates,
// trusted CRLs, issuer certificates, issuer CRLs, plus the mask saying
// which of the four are meaningful on this particular value. Every field
// is an unordered set of opaque DER bytes; ordering within a list carries
// no meaning.
type TrustList struct {
	SpecifiedLists       TrustListMask
	TrustedCertificates  [][]byte
	TrustedCRLs          [][]byte
	IssuerCertificates   [][]byte
	IssuerCRLs           [][]byte
}

// Mask returns a copy of tl containing only the sub-lists selected by mask.
// Sub-lists not selected by mask are left nil, not merely empty, so a
// caller can distinguish "not requested" from "requested and empty."
func (tl *TrustList) Mask(mask TrustListMask) *TrustList {
	out := &TrustList{SpecifiedLists: tl.SpecifiedLists & mask}
	if mask.Has(TrustListTrustedCertificates) {
		out.TrustedCertificates = tl.TrustedCertificates
	}
	if mask.Has(TrustListTrustedCRLs) {
		out.TrustedCRLs = tl.TrustedCRLs
	}
	if mask.Has(TrustListIssuerCertificates) {
		out.IssuerCertificates = tl.IssuerCertificates
	}
	if mask.Has(TrustListIssuerCRLs) {
		out.IssuerCRLs = tl.IssuerCRLs
	}
	return out
}

// FileInfo is the per-group record of open trust-list file handles and the
// wall-clock of the last committed change.
type FileInfo struct {
	OpenCount      int
	LastUpdateTime time.Time
}

// OpenMode is the mode a trust-list file handle was opened with.
type OpenMode byte

const (
	// OpenModeRead opens the file for reading a snapshot.
	OpenModeRead OpenMode = 0x01
	// OpenModeWriteErase opens the file for a full-replacement write.
	OpenModeWriteErase OpenMode = 0x06
)

// StatusCode is the closed set of return codes the core's external
// contract is defined in terms of (spec.md section 6).
type StatusCode int

const (
	Good StatusCode = iota
	BadTypeMismatch
	BadInvalidArgument
	BadInvalidState
	BadTransactionPending
	BadUserAccessDenied
	BadNothingToDo
	BadNotWritable
	BadNotReadable
	BadCertificateInvalid
	BadCertificateUriInvalid
	BadCertificateUntrusted
	BadCertificateTimeInvalid
	BadCertificateRevoked
	BadCertificateRevocationUnknown
	BadCertificateIssuerRevocationUnknown
	BadCertificateUseNotAllowed
	BadSecurityChecksFailed
	BadNotSupported
	BadOutOfMemory
	BadInternalError
)

var statusCodeNames = map[StatusCode]string{
	Good:                                 "Good",
	BadTypeMismatch:                      "BadTypeMismatch",
	BadInvalidArgument:                   "BadInvalidArgument",
	BadInvalidState:                      "BadInvalidState",
	BadTransactionPending:                "BadTransactionPending",
	BadUserAccessDenied:                  "BadUserAccessDenied",
	BadNothingToDo:                       "BadNothingToDo",
	BadNotWritable:                       "BadNotWritable",
	BadNotReadable:                       "BadNotReadable",
	BadCertificateInvalid:                "BadCertificateInvalid",
	BadCertificateUriInvalid:             "BadCertificateUriInvalid",
	BadCertificateUntrusted:              "BadCertificateUntrusted",
	BadCertificateTimeInvalid:            "BadCertificateTimeInvalid",
	BadCertificateRevoked:                "BadCertificateRevoked",
	BadCertificateRevocationUnknown:      "BadCertificateRevocationUnknown",
	BadCertificateIssuerRevocationUnknown: "BadCertificateIssuerRevocationUnknown",
	BadCertificateUseNotAllowed:          "BadCertificateUseNotAllowed",
	BadSecurityChecksFailed:              "BadSecurityChecksFailed",
	BadNotSupported:                      "BadNotSupported",
	BadOutOfMemory:                       "BadOutOfMemory",
	BadInternalError:                     "BadInternalError",
}

// String implements fmt.Stringer.
func (c StatusCode) String() string {
	if name, ok := statusCodeNames[c]; ok {
		return name
	}
	return "BadUnknown"
}

// CoreError is the error type every component-facing operation in this
// module returns on failure. It carries the operation name and the
// externally observable StatusCode alongside the underlying cause so a
// dispatcher boundary can translate it without re-deriving the code from
// a string.
type CoreError struct {
	Code StatusCode
	Op   string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Code.String()
	}
	return e.Op + ": " + e.Code.String() + ": " + e.Err.Error()
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// NewError constructs a CoreError.
func NewError(op string, code StatusCode, err error) *CoreError {
	return &CoreError{Op: op, Code: code, Err: err}
}

// CodeOf extracts the StatusCode from err if it is (or wraps) a
// *CoreError, otherwise returns BadInternalError.
func CodeOf(err error) StatusCode {
	if err == nil {
		return Good
	}
	var ce *CoreError
	if ok := asCoreError(err, &ce); ok {
		return ce.Code
	}
	return BadInternalError
}

func asCoreError(err error, target **CoreError) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
