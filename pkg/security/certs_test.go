package security

import (
	"testing"
)

func TestSaveLoadCACertToFile(t *testing.T) {
	ca := NewCertAuthority(nil)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	dir := t.TempDir()
	if err := SaveCACertToFile(ca.GetRootCACert(), dir); err != nil {
		t.Fatalf("SaveCACertToFile: %v", err)
	}
	loaded, err := LoadCACertFromFile(dir)
	if err != nil {
		t.Fatalf("LoadCACertFromFile: %v", err)
	}
	if loaded.SerialNumber.Cmp(ca.rootCert.SerialNumber) != 0 {
		t.Fatalf("loaded CA certificate serial mismatch")
	}
}

func TestCertNeedsRotation(t *testing.T) {
	if !CertNeedsRotation(nil) {
		t.Fatalf("expected a nil certificate to need rotation")
	}

	ca := NewCertAuthority(nil)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cert, err := ca.IssueServerCertificate("rotation-check", nil, nil)
	if err != nil {
		t.Fatalf("IssueServerCertificate: %v", err)
	}
	if CertNeedsRotation(cert.Leaf) {
		t.Fatalf("expected a freshly issued certificate to not need rotation")
	}
	if GetCertTimeRemaining(cert.Leaf) <= 0 {
		t.Fatalf("expected positive time remaining on a freshly issued certificate")
	}
	if GetCertExpiry(cert.Leaf) != cert.Leaf.NotAfter {
		t.Fatalf("expected GetCertExpiry to return the certificate's NotAfter")
	}
}
