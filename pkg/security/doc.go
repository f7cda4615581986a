/*
Package security provides the cryptographic plumbing pushcored uses to
secure its own administrative surface - as distinct from the OPC UA
application/HTTP/user-token identities that pkg/certstore, pkg/certverify,
and pkg/dispatch manage on behalf of the systems pushcored administers.

It has two pieces:

  - KeyProtector: AES-256-GCM encryption for private key material at
    rest, used to seal the administrative CA's root key before it
    touches disk.
  - CertAuthority: a self-signed root CA that issues the server
    certificate for pushcored's own administrative listener (today: the
    metrics/health HTTP endpoint) and client certificates for CLI
    tooling that talks to it, mirroring the shape of a teacher's
    manager<->worker and CLI<->manager mTLS setup.

A KeyProtector built from NewKeyProtector(nil-sized key) is rejected; a
CertAuthority may be built with a nil *KeyProtector, in which case its
root key is written to disk unsealed - fine for local development, never
for a production deployment.
*/
package security
