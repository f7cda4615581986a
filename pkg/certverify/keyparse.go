package certverify

import (
	"crypto"
	"crypto/x509"
	"fmt"
)

// parsePrivateKey tries each DER private key encoding the push-management
// protocol's key formats can produce (PKCS#1 RSA, PKCS#8, EC) in turn,
// since the wire format does not self-describe which one was used.
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
