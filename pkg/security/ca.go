package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CertAuthority is pushcored's own administrative certificate authority.
// It is unrelated to the OPC UA application/HTTP/user-token trust lists
// the push-management dispatcher manages - it exists solely to secure
// pushcored's own administrative surface (the metrics/health listener
// today; a future admin gRPC endpoint tomorrow) and the CLI tools that
// talk to it, the same way the teacher's cluster CA secures manager<->
// worker and CLI<->manager traffic.
type CertAuthority struct {
	rootCert  *x509.Certificate
	rootKey   *rsa.PrivateKey
	protector *KeyProtector
	certCache map[string]*CachedCert
	mu        sync.RWMutex
}

// CachedCert is the most recently issued leaf certificate for an ID, kept
// in memory for GetCachedCert. Every IssueServerCertificate or
// IssueClientCertificate call issues a fresh certificate and replaces the
// cached entry; the cache is not consulted to skip issuing.
type CachedCert struct {
	Cert      *x509.Certificate
	Key       *rsa.PrivateKey
	IssuedAt  time.Time
	ExpiresAt time.Time
}

const (
	rootCAValidity = 10 * 365 * 24 * time.Hour
	leafValidity   = 90 * 24 * time.Hour
	rootKeySize    = 4096
	leafKeySize    = 2048
)

// NewCertAuthority creates a CertAuthority whose root key is sealed at
// rest with protector. protector may be nil, in which case SaveToDisk
// writes the root key in the clear - acceptable for local development,
// never for a production deployment.
func NewCertAuthority(protector *KeyProtector) *CertAuthority {
	return &CertAuthority{protector: protector, certCache: make(map[string]*CachedCert)}
}

// Initialize generates a new root CA certificate and key.
func (ca *CertAuthority) Initialize() error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	rootKey, err := rsa.GenerateKey(rand.Reader, rootKeySize)
	if err != nil {
		return fmt.Errorf("failed to generate root key: %w", err)
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"pushcored"},
			CommonName:   "pushcored administrative CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(rootCAValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLen:            1,
		MaxPathLenZero:        false,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &rootKey.PublicKey, rootKey)
	if err != nil {
		return fmt.Errorf("failed to create root certificate: %w", err)
	}
	rootCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("failed to parse root certificate: %w", err)
	}

	ca.rootCert = rootCert
	ca.rootKey = rootKey
	return nil
}

// LoadFromDisk loads a previously Initialize'd and SaveToDisk'd CA from
// certDir/ca.crt and certDir/ca.key.
func (ca *CertAuthority) LoadFromDisk(certDir string) error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	rootCert, err := LoadCACertFromFile(certDir)
	if err != nil {
		return err
	}
	sealed, err := os.ReadFile(filepath.Join(certDir, "ca.key"))
	if err != nil {
		return fmt.Errorf("failed to read CA key: %w", err)
	}
	keyDER := sealed
	if ca.protector != nil {
		keyDER, err = ca.protector.Open(sealed)
		if err != nil {
			return fmt.Errorf("failed to unseal CA key: %w", err)
		}
	}
	rootKey, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("failed to parse CA key: %w", err)
	}

	ca.rootCert = rootCert
	ca.rootKey = rootKey
	return nil
}

// SaveToDisk persists the CA's certificate and (sealed, if a protector
// was configured) private key under certDir.
func (ca *CertAuthority) SaveToDisk(certDir string) error {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil || ca.rootKey == nil {
		return fmt.Errorf("CA not initialized")
	}
	if err := SaveCACertToFile(ca.rootCert.Raw, certDir); err != nil {
		return err
	}

	keyDER := x509.MarshalPKCS1PrivateKey(ca.rootKey)
	out := keyDER
	if ca.protector != nil {
		sealed, err := ca.protector.Seal(keyDER)
		if err != nil {
			return fmt.Errorf("failed to seal CA key: %w", err)
		}
		out = sealed
	}
	if err := os.WriteFile(filepath.Join(certDir, "ca.key"), out, 0o600); err != nil {
		return fmt.Errorf("failed to write CA key: %w", err)
	}
	return nil
}

// IssueServerCertificate issues a server certificate for pushcored's own
// administrative listener.
func (ca *CertAuthority) IssueServerCertificate(id string, dnsNames []string, ipAddresses []net.IP) (*tls.Certificate, error) {
	return ca.issueLeaf(id, "pushcored-"+id, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}, dnsNames, ipAddresses)
}

// IssueClientCertificate issues a client certificate for a CLI or other
// administrative caller identified by clientID.
func (ca *CertAuthority) IssueClientCertificate(clientID string) (*tls.Certificate, error) {
	return ca.issueLeaf(clientID, "cli-"+clientID, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, nil, nil)
}

func (ca *CertAuthority) issueLeaf(cacheKey, commonName string, extUsage []x509.ExtKeyUsage, dnsNames []string, ipAddresses []net.IP) (*tls.Certificate, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	if ca.rootCert == nil || ca.rootKey == nil {
		return nil, fmt.Errorf("CA not initialized")
	}

	leafKey, err := rsa.GenerateKey(rand.Reader, leafKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate leaf key: %w", err)
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{Organization: []string{"pushcored"}, CommonName: commonName},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(leafValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  extUsage,
		DNSNames:     dnsNames,
		IPAddresses:  ipAddresses,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.rootCert, &leafKey.PublicKey, ca.rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create leaf certificate: %w", err)
	}
	leafCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
	}

	ca.certCache[cacheKey] = &CachedCert{Cert: leafCert, Key: leafKey, IssuedAt: leafCert.NotBefore, ExpiresAt: leafCert.NotAfter}
	return &tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: leafKey, Leaf: leafCert}, nil
}

// VerifyCertificate verifies a certificate against the root CA.
func (ca *CertAuthority) VerifyCertificate(cert *x509.Certificate) error {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.rootCert == nil {
		return fmt.Errorf("CA not initialized")
	}
	roots := x509.NewCertPool()
	roots.AddCert(ca.rootCert)
	opts := x509.VerifyOptions{Roots: roots, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth}}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate verification failed: %w", err)
	}
	return nil
}

// GetRootCACert returns the root CA certificate in DER format.
func (ca *CertAuthority) GetRootCACert() []byte {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.rootCert == nil {
		return nil
	}
	return ca.rootCert.Raw
}

// IsInitialized returns true if the CA has a root certificate and key.
func (ca *CertAuthority) IsInitialized() bool {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	return ca.rootCert != nil && ca.rootKey != nil
}

// GetCachedCert retrieves a previously issued leaf certificate.
func (ca *CertAuthority) GetCachedCert(id string) (*CachedCert, bool) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	cert, ok := ca.certCache[id]
	return cert, ok
}
