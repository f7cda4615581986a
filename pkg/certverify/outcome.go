package certverify

// Outcome is the closed set of judgements Verify can return.
type Outcome int

const (
	// OutcomeTrusted means the candidate chains to a trusted root and is
	// not revoked.
	OutcomeTrusted Outcome = iota
	// OutcomeUntrusted means no chain to any trusted or issuer
	// certificate could be built.
	OutcomeUntrusted
	// OutcomeRevoked means a CRL issued by the candidate's issuer lists
	// the candidate's serial number.
	OutcomeRevoked
	// OutcomeRevocationUnknown means the candidate's issuer is trusted
	// but no CRL covering it was found in the trust list.
	OutcomeRevocationUnknown
	// OutcomeIssuerRevocationUnknown means an intermediate issuer in the
	// chain has no covering CRL, even though the leaf's own issuer does.
	OutcomeIssuerRevocationUnknown
	// OutcomeTimeInvalid means the candidate is expired or not yet
	// valid.
	OutcomeTimeInvalid
	// OutcomeUseNotAllowed means the candidate's key usage or extended
	// key usage does not permit the requested purpose.
	OutcomeUseNotAllowed
	// OutcomeSecurityChecksFailed is a catch-all for malformed input or
	// any other verification failure not covered above.
	OutcomeSecurityChecksFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeTrusted:                  "Trusted",
	OutcomeUntrusted:                "Untrusted",
	OutcomeRevoked:                  "Revoked",
	OutcomeRevocationUnknown:        "RevocationUnknown",
	OutcomeIssuerRevocationUnknown:  "IssuerRevocationUnknown",
	OutcomeTimeInvalid:              "TimeInvalid",
	OutcomeUseNotAllowed:            "UseNotAllowed",
	OutcomeSecurityChecksFailed:     "SecurityChecksFailed",
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "Unknown"
}
