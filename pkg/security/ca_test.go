package security

import (
	"net"
	"testing"
)

func TestInitializeCAIssuesLeafCertificates(t *testing.T) {
	ca := NewCertAuthority(nil)
	if ca.IsInitialized() {
		t.Fatalf("expected a fresh CA to be uninitialized")
	}
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !ca.IsInitialized() {
		t.Fatalf("expected CA to be initialized")
	}

	srvCert, err := ca.IssueServerCertificate("admin", []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("IssueServerCertificate: %v", err)
	}
	if err := ca.VerifyCertificate(srvCert.Leaf); err != nil {
		t.Fatalf("expected server cert to verify against root: %v", err)
	}

	cliCert, err := ca.IssueClientCertificate("operator-1")
	if err != nil {
		t.Fatalf("IssueClientCertificate: %v", err)
	}
	if err := ca.VerifyCertificate(cliCert.Leaf); err != nil {
		t.Fatalf("expected client cert to verify against root: %v", err)
	}

	if _, ok := ca.GetCachedCert("operator-1"); !ok {
		t.Fatalf("expected issued client cert to be cached")
	}
}

func TestCertAuthoritySaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	protector, err := NewKeyProtector(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewKeyProtector: %v", err)
	}

	ca := NewCertAuthority(protector)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ca.SaveToDisk(dir); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	loaded := NewCertAuthority(protector)
	if err := loaded.LoadFromDisk(dir); err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}
	if !loaded.IsInitialized() {
		t.Fatalf("expected loaded CA to be initialized")
	}

	cert, err := loaded.IssueClientCertificate("reloaded")
	if err != nil {
		t.Fatalf("IssueClientCertificate after reload: %v", err)
	}
	if err := loaded.VerifyCertificate(cert.Leaf); err != nil {
		t.Fatalf("expected reloaded CA to issue verifiable certs: %v", err)
	}
}

func TestCertAuthorityLoadFromDiskRejectsWrongProtector(t *testing.T) {
	dir := t.TempDir()
	protector, err := NewKeyProtector(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewKeyProtector: %v", err)
	}
	ca := NewCertAuthority(protector)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ca.SaveToDisk(dir); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	wrongKey := make([]byte, 32)
	wrongKey[0] = 1
	wrongProtector, err := NewKeyProtector(wrongKey)
	if err != nil {
		t.Fatalf("NewKeyProtector: %v", err)
	}
	loaded := NewCertAuthority(wrongProtector)
	if err := loaded.LoadFromDisk(dir); err == nil {
		t.Fatalf("expected loading with the wrong protector key to fail")
	}
}

func TestIssueLeafBeforeInitializeFails(t *testing.T) {
	ca := NewCertAuthority(nil)
	if _, err := ca.IssueClientCertificate("too-soon"); err == nil {
		t.Fatalf("expected issuing before Initialize to fail")
	}
}
