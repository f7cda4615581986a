/*
Package certverify implements the Certificate Verifier (C2): it decides
whether a candidate DER certificate is Trusted, Untrusted, Revoked, or
one of the narrower failure outcomes spec.md section 4.2 enumerates,
given a group's current TrustList.

Verify never touches a Certificate Store itself - it is handed the
TrustList content and a candidate certificate and returns a judgement -
so the same Verifier works for every certificate group without knowing
which group it is deciding for. This generalizes the teacher's
CertAuthority.VerifyCertificate (pkg/security/ca.go), which checked a
single node certificate against one fixed root pool, into chain
verification against an arbitrary, caller-supplied trusted/issuer split
plus CRL-based revocation checking.
*/
package certverify
