package dispatch

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"time"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/certverify"
	"github.com/nexusgds/pushcore/pkg/events"
	"github.com/nexusgds/pushcore/pkg/metrics"
	"github.com/nexusgds/pushcore/pkg/txn"
	"github.com/nexusgds/pushcore/pkg/types"
)

// AddCertificate adds cert to group's trusted certificate list (trusted
// must be true; false is rejected) and commits immediately: unlike UpdateCertificate
// and the trust-list file WRITE verb, AddCertificate and RemoveCertificate
// are not staged through the Transaction Manager. They act on whichever
// single entry the caller named and take effect the moment they return,
// since there is nothing else in flight for them to be atomic with.
func (s *Server) AddCertificate(group types.Group, cert []byte, trusted bool) error {
	// isTrusted==false and an empty certificate both fail up front, before
	// the store is even looked up: AddCertificate only ever adds to the
	// trusted set, and a CA certificate or issuer addition must go in via
	// the trust-list file verbs instead.
	if !trusted || len(cert) == 0 {
		return types.NewError("dispatch.AddCertificate", types.BadCertificateInvalid, fmt.Errorf("AddCertificate requires isTrusted=true and a non-empty certificate"))
	}

	gs, err := s.group(group)
	if err != nil {
		return err
	}
	if gs.files.Info().OpenCount > 0 {
		return types.NewError("dispatch.AddCertificate", types.BadInvalidState, fmt.Errorf("group %q has an open trust-list file handle", group))
	}

	parsed, err := x509.ParseCertificate(cert)
	if err != nil {
		return types.NewError("dispatch.AddCertificate", types.BadCertificateInvalid, err)
	}
	if isCACertificate(parsed) {
		return types.NewError("dispatch.AddCertificate", types.BadCertificateInvalid, fmt.Errorf("CA certificates must be added via the trust-list file verbs"))
	}

	tl := &types.TrustList{
		SpecifiedLists:      types.TrustListTrustedCertificates,
		TrustedCertificates: [][]byte{cert},
	}
	if err := gs.store.AddToTrustList(tl); err != nil {
		return err
	}
	gs.files.MarkUpdated(time.Now())
	s.publish(events.EventCertificateAdded, group, "certificate added")
	return nil
}

// isCACertificate reports whether cert is a CA certificate per spec.md's
// no-CA rule for AddCertificate: either it is marked as a CA in its
// basic constraints, or its key usage permits signing other certificates
// or CRLs - either property makes it unfit to be presented as a trusted
// end-entity certificate.
func isCACertificate(cert *x509.Certificate) bool {
	if cert.IsCA {
		return true
	}
	return cert.KeyUsage&(x509.KeyUsageCertSign|x509.KeyUsageCRLSign) != 0
}

// RemoveCertificate removes the certificate identified by thumbprint from
// group's trusted or issuer certificate list, and commits immediately.
func (s *Server) RemoveCertificate(group types.Group, thumbprint string, trusted bool) error {
	gs, err := s.group(group)
	if err != nil {
		return err
	}
	if gs.files.Info().OpenCount > 0 {
		return types.NewError("dispatch.RemoveCertificate", types.BadInvalidState, fmt.Errorf("group %q has an open trust-list file handle", group))
	}
	der, err := gs.store.FindByThumbprint(trusted, thumbprint)
	if err != nil {
		return err
	}
	if der == nil {
		return types.NewError("dispatch.RemoveCertificate", types.BadInvalidArgument, fmt.Errorf("no certificate with thumbprint %q", thumbprint))
	}

	tl := &types.TrustList{}
	if trusted {
		tl.SpecifiedLists = types.TrustListTrustedCertificates
		tl.TrustedCertificates = [][]byte{der}
	} else {
		tl.SpecifiedLists = types.TrustListIssuerCertificates
		tl.IssuerCertificates = [][]byte{der}
	}
	if err := gs.store.RemoveFromTrustList(tl); err != nil {
		return err
	}
	gs.files.MarkUpdated(time.Now())
	s.publish(events.EventCertificateRemoved, group, "certificate removed")
	return nil
}

// GetRejectedList returns every certificate the Certificate Verifier has
// rejected, across the Application, HTTP, and user-token groups in that
// fixed order, concatenated into a single list.
func (s *Server) GetRejectedList() ([][]byte, error) {
	var out [][]byte
	for _, group := range []types.Group{types.GroupApplication, types.GroupHTTP, types.GroupUserToken} {
		gs, ok := s.groups[group]
		if !ok {
			continue
		}
		rejected, err := gs.store.GetRejectedList()
		if err != nil {
			return nil, err
		}
		out = append(out, rejected...)
	}
	return out, nil
}

// VerifyCertificate judges candidate against group's current trust
// state via the Certificate Verifier and, per spec.md's "on any
// rejection, the candidate is appended to the group's rejected list,"
// records every non-Trusted outcome there before returning it.
func (s *Server) VerifyCertificate(group types.Group, candidate []byte) (certverify.Outcome, error) {
	gs, err := s.group(group)
	if err != nil {
		return certverify.OutcomeSecurityChecksFailed, err
	}
	tl, err := gs.store.GetTrustList(types.TrustListAll)
	if err != nil {
		return certverify.OutcomeSecurityChecksFailed, err
	}

	outcome, verifyErr := s.verifier.Verify(candidate, tl)
	metrics.VerificationsTotal.WithLabelValues(string(group), outcome.String()).Inc()

	if outcome != certverify.OutcomeTrusted {
		s.log.Warn().Str("group", string(group)).Str("outcome", outcome.String()).Msg("certificate verification failed")
		if err := gs.store.AddToRejectedList(candidate); err != nil {
			s.log.Warn().Err(err).Str("group", string(group)).Msg("failed to record rejected certificate")
		} else if rejected, err := gs.store.GetRejectedList(); err == nil {
			metrics.RejectedListSize.WithLabelValues(string(group)).Set(float64(len(rejected)))
		}
		s.publish(events.EventCertificateRejected, group, fmt.Sprintf("certificate rejected: %s", outcome))
	}

	return outcome, verifyErr
}

// UpdateCertificate stages a replacement application instance
// certificate (and, optionally, its private key) for group. Per
// spec.md, this operation is only defined for the Application group: a
// server's HTTP and user-token identities are managed entirely through
// the trust-list file interface and AddCertificate/RemoveCertificate,
// never through a direct certificate swap. The change is staged in the
// active transaction and only takes effect once ApplyChanges commits.
func (s *Server) UpdateCertificate(sessionID string, group types.Group, typeID types.CertificateTypeID, cert, key []byte) error {
	if group != types.GroupApplication {
		return types.NewError("dispatch.UpdateCertificate", types.BadInvalidArgument, fmt.Errorf("UpdateCertificate is only defined for the Application group"))
	}
	if _, err := s.group(group); err != nil {
		return err
	}
	if _, err := x509.ParseCertificate(cert); err != nil {
		return types.NewError("dispatch.UpdateCertificate", types.BadCertificateInvalid, err)
	}
	if len(key) > 0 {
		if err := s.verifier.MatchesKeyPair(cert, key); err != nil {
			return types.NewError("dispatch.UpdateCertificate", types.BadSecurityChecksFailed, err)
		}
	}
	if err := s.verifier.VerifyApplicationURI(cert, s.cfg.ApplicationURI, s.cfg.PermissiveURICheck); err != nil {
		return types.NewError("dispatch.UpdateCertificate", types.BadCertificateUriInvalid, err)
	}

	return s.txn.StageCertificateUpdate(sessionID, txn.CertUpdate{Group: group, TypeID: typeID, Cert: cert, Key: key})
}

// applyCertUpdate is the callback txn.Manager.Commit uses to write a
// staged CertUpdate to its group's live store. An empty update.Key means
// the caller did not submit a new key (the usual case after
// CreateSigningRequest without regenerateKey): the previously stored key
// is kept as-is.
func applyCertUpdate(store certstore.Store, update txn.CertUpdate) error {
	oldCert, oldKey, err := store.ReadIdentity()
	if err != nil && types.CodeOf(err) != types.BadInvalidState {
		return err
	}
	key := update.Key
	if len(key) == 0 {
		key = oldKey
	}
	return store.WriteIdentity(oldCert, update.Cert, key)
}

// CreateSigningRequest builds a PKCS#10 certificate signing request for
// group's currently active key, optionally generating and persisting a
// fresh key pair first. The nonce parameter is accepted for protocol
// shape compatibility; Go's crypto/rand already supplies a
// cryptographically secure entropy source for key generation, so the
// nonce itself is not consumed as additional entropy.
func (s *Server) CreateSigningRequest(group types.Group, subjectName string, regenerateKey bool, nonce []byte) ([]byte, error) {
	gs, err := s.group(group)
	if err != nil {
		return nil, err
	}
	currentCert, currentKey, err := gs.store.ReadIdentity()
	if err != nil {
		if types.CodeOf(err) != types.BadInvalidState {
			return nil, err
		}
		currentCert, currentKey = nil, nil
	}

	signer, keyDER, err := signingKeyFor(currentKey, regenerateKey)
	if err != nil {
		return nil, types.NewError("dispatch.CreateSigningRequest", types.BadInternalError, err)
	}
	if regenerateKey {
		if err := gs.store.WriteIdentity(currentCert, currentCert, keyDER); err != nil {
			return nil, err
		}
	}

	subject := pkix.Name{CommonName: subjectName}
	if subjectName == "" && currentCert != nil {
		if parsed, err := x509.ParseCertificate(currentCert); err == nil {
			subject = parsed.Subject
		}
	}

	template := &x509.CertificateRequest{Subject: subject}
	csr, err := x509.CreateCertificateRequest(rand.Reader, template, signer)
	if err != nil {
		return nil, types.NewError("dispatch.CreateSigningRequest", types.BadInternalError, fmt.Errorf("create certificate request: %w", err))
	}
	return csr, nil
}

// signingKeyFor returns a crypto.Signer for the CSR and the DER key that
// should be persisted when regenerateKey is true. When regenerateKey is
// false, currentKeyDER is parsed and reused as-is.
func signingKeyFor(currentKeyDER []byte, regenerateKey bool) (crypto.Signer, []byte, error) {
	if !regenerateKey {
		key, err := parsePrivateKey(currentKeyDER)
		if err != nil {
			return nil, nil, fmt.Errorf("parse current private key: %w", err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, nil, fmt.Errorf("current private key does not support signing")
		}
		return signer, currentKeyDER, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key pair: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal generated key: %w", err)
	}
	return key, der, nil
}
