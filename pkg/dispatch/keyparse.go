package dispatch

import (
	"crypto"
	"crypto/x509"
	"fmt"
)

// parsePrivateKey tries each DER private key encoding the push-management
// protocol's key formats can produce (PKCS#1 RSA, PKCS#8, EC) in turn,
// mirroring certverify's own parsePrivateKey: CreateSigningRequest needs
// to reuse a group's currently stored key as a crypto.Signer, and that
// parsing is otherwise identical to the one certverify does internally.
func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unrecognized private key encoding")
}
