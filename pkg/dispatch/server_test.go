package dispatch

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/certverify"
	"github.com/nexusgds/pushcore/pkg/channels"
	"github.com/nexusgds/pushcore/pkg/events"
	"github.com/nexusgds/pushcore/pkg/types"
)

func newTestServer(t *testing.T) (*Server, map[types.Group]certstore.Store) {
	t.Helper()
	stores := map[types.Group]certstore.Store{
		types.GroupApplication: certstore.NewMemStore(),
		types.GroupHTTP:        certstore.NewMemStore(),
		types.GroupUserToken:   certstore.NewMemStore(),
	}
	srv := NewServer(
		Config{ApplicationURI: "urn:example:server", PermissiveURICheck: true},
		stores,
		certverify.New(certverify.Config{}),
		channels.NewRegistry(),
		events.NewBroker(),
	)
	return srv, stores
}

func genCert(t *testing.T, cn string, serial int64) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return der, key
}

func TestAddAndRemoveCertificateCommitsImmediately(t *testing.T) {
	srv, stores := newTestServer(t)
	cert, _ := genCert(t, "trusted-peer", 1)

	if err := srv.AddCertificate(types.GroupApplication, cert, true); err != nil {
		t.Fatalf("AddCertificate: %v", err)
	}
	tl, err := stores[types.GroupApplication].GetTrustList(types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("GetTrustList: %v", err)
	}
	if len(tl.TrustedCertificates) != 1 {
		t.Fatalf("expected 1 trusted certificate, got %d", len(tl.TrustedCertificates))
	}

	thumb := certstore.Thumbprint(cert)
	if err := srv.RemoveCertificate(types.GroupApplication, thumb, true); err != nil {
		t.Fatalf("RemoveCertificate: %v", err)
	}
	tl, err = stores[types.GroupApplication].GetTrustList(types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("GetTrustList: %v", err)
	}
	if len(tl.TrustedCertificates) != 0 {
		t.Fatalf("expected certificate to be removed, got %d remaining", len(tl.TrustedCertificates))
	}
}

func TestRemoveCertificateUnknownThumbprint(t *testing.T) {
	srv, _ := newTestServer(t)
	err := srv.RemoveCertificate(types.GroupApplication, "DEADBEEF", true)
	if types.CodeOf(err) != types.BadInvalidArgument {
		t.Fatalf("expected BadInvalidArgument, got %v", types.CodeOf(err))
	}
}

func TestUpdateCertificateRejectsNonApplicationGroup(t *testing.T) {
	srv, _ := newTestServer(t)
	cert, key := genCert(t, "http-identity", 2)
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	err = srv.UpdateCertificate("session-1", types.GroupHTTP, types.CertificateTypeRsaSha256, cert, keyDER)
	if types.CodeOf(err) != types.BadInvalidArgument {
		t.Fatalf("expected BadInvalidArgument for non-Application group, got %v", types.CodeOf(err))
	}
}

func TestOpenWriteCloseAndUpdateApplyChangesFlow(t *testing.T) {
	srv, stores := newTestServer(t)
	trustedCert, _ := genCert(t, "new-trusted", 3)

	handle, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tl := &types.TrustList{
		SpecifiedLists:      types.TrustListAll,
		TrustedCertificates: [][]byte{trustedCert},
	}
	if err := srv.Write("session-1", types.GroupApplication, handle, EncodeTrustList(tl)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := srv.CloseAndUpdate("session-1", types.GroupApplication, handle); err != nil {
		t.Fatalf("CloseAndUpdate: %v", err)
	}

	liveTL, err := stores[types.GroupApplication].GetTrustList(types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("GetTrustList: %v", err)
	}
	if len(liveTL.TrustedCertificates) != 0 {
		t.Fatalf("expected staged write not yet visible on live store before ApplyChanges")
	}

	if err := srv.ApplyChanges("session-1"); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}

	liveTL, err = stores[types.GroupApplication].GetTrustList(types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("GetTrustList: %v", err)
	}
	if len(liveTL.TrustedCertificates) != 1 {
		t.Fatalf("expected 1 trusted certificate after commit, got %d", len(liveTL.TrustedCertificates))
	}
}

func TestApplyChangesRefusesWithOpenHandle(t *testing.T) {
	srv, _ := newTestServer(t)

	handle, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := srv.Write("session-1", types.GroupApplication, handle, EncodeTrustList(&types.TrustList{SpecifiedLists: types.TrustListAll})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := srv.CloseAndUpdate("session-1", types.GroupApplication, handle); err != nil {
		t.Fatalf("CloseAndUpdate: %v", err)
	}

	readHandle, err := srv.Open("session-2-reader", types.GroupApplication, types.OpenModeRead)
	if err != nil {
		t.Fatalf("Open read handle: %v", err)
	}

	err = srv.ApplyChanges("session-1")
	if types.CodeOf(err) != types.BadInvalidState {
		t.Fatalf("expected BadInvalidState while a read handle is open, got %v", types.CodeOf(err))
	}

	if err := srv.Close("session-2-reader", types.GroupApplication, readHandle); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := srv.ApplyChanges("session-1"); err != nil {
		t.Fatalf("ApplyChanges after handle closed: %v", err)
	}
}

func TestOpenWriteRefusesSecondSessionWhileTransactionPending(t *testing.T) {
	srv, _ := newTestServer(t)
	if _, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err := srv.Open("session-2", types.GroupHTTP, types.OpenModeWriteErase)
	if types.CodeOf(err) != types.BadTransactionPending {
		t.Fatalf("expected BadTransactionPending, got %v", types.CodeOf(err))
	}
}

func TestCloseDiscardsWithoutStaging(t *testing.T) {
	srv, _ := newTestServer(t)
	handle, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := srv.Write("session-1", types.GroupApplication, handle, []byte("garbage")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := srv.Close("session-1", types.GroupApplication, handle); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err = srv.ApplyChanges("session-1")
	if types.CodeOf(err) != types.BadNothingToDo {
		t.Fatalf("expected BadNothingToDo since Close discarded the write without staging anything, got %v", types.CodeOf(err))
	}
}

func TestApplyChangesRejectsWrongSession(t *testing.T) {
	srv, _ := newTestServer(t)
	cert, _ := genCert(t, "x", 4)
	if err := srv.AddCertificate(types.GroupApplication, cert, true); err != nil {
		t.Fatalf("AddCertificate: %v", err)
	}
	if _, err := srv.Open("session-1", types.GroupApplication, types.OpenModeWriteErase); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := srv.ApplyChanges("session-2")
	if types.CodeOf(err) != types.BadUserAccessDenied {
		t.Fatalf("expected BadUserAccessDenied, got %v", types.CodeOf(err))
	}
}

func TestPostCommitSweepClosesChannelsOnCertificateChange(t *testing.T) {
	srv, stores := newTestServer(t)
	ca, key := genCert(t, "root", 5)
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	if err := stores[types.GroupApplication].WriteIdentity(nil, ca, keyDER); err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	chReg := channels.NewRegistry()
	chReg.Register(&channels.Channel{ID: "chan-1", Group: types.GroupApplication, PeerCertificate: ca})
	srv.channels = chReg

	if err := srv.UpdateCertificate("session-1", types.GroupApplication, types.CertificateTypeRsaSha256, ca, keyDER); err != nil {
		t.Fatalf("UpdateCertificate: %v", err)
	}
	if err := srv.ApplyChanges("session-1"); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}

	snap := chReg.Snapshot()
	if len(snap) != 1 || snap[0].State != channels.ChannelClosing {
		t.Fatalf("expected the channel to be marked closing after a certificate change, got %+v", snap)
	}
}

func TestGetRejectedListOrdersByGroup(t *testing.T) {
	srv, stores := newTestServer(t)
	if err := stores[types.GroupApplication].AddToRejectedList([]byte("a")); err != nil {
		t.Fatalf("seed rejected: %v", err)
	}
	if err := stores[types.GroupUserToken].AddToRejectedList([]byte("c")); err != nil {
		t.Fatalf("seed rejected: %v", err)
	}
	if err := stores[types.GroupHTTP].AddToRejectedList([]byte("b")); err != nil {
		t.Fatalf("seed rejected: %v", err)
	}

	out, err := srv.GetRejectedList()
	if err != nil {
		t.Fatalf("GetRejectedList: %v", err)
	}
	if len(out) != 3 || string(out[0]) != "a" || string(out[1]) != "b" || string(out[2]) != "c" {
		t.Fatalf("expected rejected list in Application, HTTP, UserToken order, got %v", out)
	}
}
