package certverify

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/nexusgds/pushcore/pkg/log"
	"github.com/nexusgds/pushcore/pkg/types"
)

// Config tunes Verifier behavior for an Open Question spec.md leaves
// undecided: what a group with an empty trust list (no trusted
// certificates and no issuer certificates at all) should do with every
// candidate.
type Config struct {
	// RejectDegenerateStore, when true, makes Verify return
	// OutcomeUntrusted for every candidate against a group whose trust
	// list is completely empty. When false (the default, matching the
	// reference implementation's permissive startup behavior), an empty
	// trust list accepts every candidate as Trusted and logs a warning,
	// so a freshly provisioned server is reachable before an
	// administrator has pushed its first trust list.
	RejectDegenerateStore bool
}

// Verifier judges candidate certificates against a TrustList. It holds
// no per-group state; the same Verifier instance is reused across every
// certificate group.
type Verifier struct {
	cfg Config
}

// New returns a Verifier configured by cfg.
func New(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify judges candidate (a DER certificate) against tl, which must
// carry TrustedCertificates, TrustedCRLs, IssuerCertificates, and
// IssuerCRLs regardless of its SpecifiedLists mask - callers should
// fetch the trust list with types.TrustListAll before calling Verify.
func (v *Verifier) Verify(candidate []byte, tl *types.TrustList) (Outcome, error) {
	cert, err := x509.ParseCertificate(candidate)
	if err != nil {
		return OutcomeSecurityChecksFailed, fmt.Errorf("parse candidate certificate: %w", err)
	}

	// A CA certificate presented as an end-entity certificate is never
	// an acceptable candidate, regardless of what the trust list says:
	// keyCertSign plus cRLSign is the signature of a certificate meant
	// to sign other certificates and CRLs, not to authenticate a peer.
	if cert.KeyUsage&x509.KeyUsageCertSign != 0 && cert.KeyUsage&x509.KeyUsageCRLSign != 0 {
		return OutcomeUseNotAllowed, nil
	}

	if len(tl.TrustedCertificates) == 0 && len(tl.IssuerCertificates) == 0 {
		if v.cfg.RejectDegenerateStore {
			return OutcomeUntrusted, nil
		}
		log.Logger.Warn().Msg("certverify: empty trust list, accepting candidate by default policy")
		return OutcomeTrusted, nil
	}

	for _, trusted := range tl.TrustedCertificates {
		if bytes.Equal(trusted, candidate) {
			return v.checkRevocation(cert, cert, tl)
		}
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return OutcomeTimeInvalid, nil
	}

	roots := x509.NewCertPool()
	for _, der := range tl.TrustedCertificates {
		if c, err := x509.ParseCertificate(der); err == nil {
			roots.AddCert(c)
		}
	}
	intermediates := x509.NewCertPool()
	for _, der := range tl.IssuerCertificates {
		if c, err := x509.ParseCertificate(der); err == nil {
			intermediates.AddCert(c)
		}
	}

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		if _, ok := err.(x509.CertificateInvalidError); ok {
			return OutcomeTimeInvalid, nil
		}
		return OutcomeUntrusted, nil
	}
	if len(chains) == 0 {
		return OutcomeUntrusted, nil
	}

	return v.checkRevocationChain(chains[0], tl)
}

// checkRevocation is the single-certificate (self-trusted) path: there
// is no chain, only the certificate's own issuer to check a CRL
// against.
func (v *Verifier) checkRevocation(cert, issuer *x509.Certificate, tl *types.TrustList) (Outcome, error) {
	crl, found := findCoveringCRL(issuer, tl.TrustedCRLs)
	if !found {
		return OutcomeTrusted, nil
	}
	if crlRevokes(crl, cert) {
		return OutcomeRevoked, nil
	}
	return OutcomeTrusted, nil
}

// checkRevocationChain walks every link of a built chain and checks
// each certificate against the CRL issued by its issuer. The leaf's
// issuer CRL is looked up in TrustedCRLs first and then in IssuerCRLs;
// every other link is checked against IssuerCRLs only.
func (v *Verifier) checkRevocationChain(chain []*x509.Certificate, tl *types.TrustList) (Outcome, error) {
	if len(chain) < 2 {
		return OutcomeTrusted, nil
	}
	leaf, leafIssuer := chain[0], chain[1]

	crl, found := findCoveringCRL(leafIssuer, tl.TrustedCRLs)
	if !found {
		crl, found = findCoveringCRL(leafIssuer, tl.IssuerCRLs)
	}
	if !found {
		return OutcomeRevocationUnknown, nil
	}
	if crlRevokes(crl, leaf) {
		return OutcomeRevoked, nil
	}

	for i := 1; i < len(chain)-1; i++ {
		link, linkIssuer := chain[i], chain[i+1]
		linkCRL, linkFound := findCoveringCRL(linkIssuer, tl.IssuerCRLs)
		if !linkFound {
			return OutcomeIssuerRevocationUnknown, nil
		}
		if crlRevokes(linkCRL, link) {
			return OutcomeRevoked, nil
		}
	}

	return OutcomeTrusted, nil
}

func findCoveringCRL(issuer *x509.Certificate, crls [][]byte) (*x509.RevocationList, bool) {
	for _, der := range crls {
		rl, err := x509.ParseRevocationList(der)
		if err != nil {
			continue
		}
		if bytes.Equal(rl.RawIssuer, issuer.RawSubject) {
			return rl, true
		}
	}
	return nil, false
}

func crlRevokes(rl *x509.RevocationList, cert *x509.Certificate) bool {
	for _, entry := range rl.RevokedCertificateEntries {
		if entry.SerialNumber != nil && cert.SerialNumber != nil && entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			return true
		}
	}
	return false
}

// VerifyApplicationURI checks that candidate's subjectAltName URI entry
// matches uri. When permissive is true (the reference implementation's
// default for application instance certificates issued before a strict
// policy was configured) a candidate with no URI SAN at all is allowed
// through; when false, a missing URI SAN is itself a failure.
func (v *Verifier) VerifyApplicationURI(candidate []byte, uri string, permissive bool) error {
	cert, err := x509.ParseCertificate(candidate)
	if err != nil {
		return fmt.Errorf("parse candidate certificate: %w", err)
	}
	if len(cert.URIs) == 0 {
		if permissive {
			return nil
		}
		return fmt.Errorf("certificate carries no application URI")
	}
	for _, u := range cert.URIs {
		if u.String() == uri {
			return nil
		}
	}
	return fmt.Errorf("certificate application URI %q does not match expected %q", cert.URIs[0].String(), uri)
}

// MatchesKeyPair reports whether keyDER is the private key corresponding
// to certDER's public key. UpdateCertificate checks this before staging
// a new identity that comes with a key.
func (v *Verifier) MatchesKeyPair(certDER, keyDER []byte) error {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	key, err := parsePrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return fmt.Errorf("private key type does not expose a public key")
	}
	certPub, ok := cert.PublicKey.(interface{ Equal(x crypto.PublicKey) bool })
	if !ok {
		return fmt.Errorf("certificate public key type does not support comparison")
	}
	if !certPub.Equal(signer.Public()) {
		return fmt.Errorf("certificate and private key do not match")
	}
	return nil
}
