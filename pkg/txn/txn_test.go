package txn

import (
	"testing"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/types"
)

func TestStageTrustListChangeOpensTransactionAndStaysIsolated(t *testing.T) {
	live := certstore.NewMemStore()
	cert := []byte("cert-a")
	if err := live.SetTrustList(&types.TrustList{
		SpecifiedLists:      types.TrustListTrustedCertificates,
		TrustedCertificates: [][]byte{cert},
	}); err != nil {
		t.Fatalf("seed live store: %v", err)
	}

	m := New()
	extra := []byte("cert-b")
	err := m.StageTrustListChange("session-1", types.GroupApplication, live, func(s certstore.Store) error {
		return s.AddToTrustList(&types.TrustList{
			SpecifiedLists:      types.TrustListTrustedCertificates,
			TrustedCertificates: [][]byte{extra},
		})
	})
	if err != nil {
		t.Fatalf("StageTrustListChange: %v", err)
	}
	if m.State() != StatePending {
		t.Fatalf("expected StatePending after staging, got %v", m.State())
	}

	liveTL, err := live.GetTrustList(types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("GetTrustList: %v", err)
	}
	if len(liveTL.TrustedCertificates) != 1 {
		t.Fatalf("staged change leaked into live store before commit: got %d certs", len(liveTL.TrustedCertificates))
	}

	stagedTL, err := m.StagedTrustList(types.GroupApplication, live, types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("StagedTrustList: %v", err)
	}
	if len(stagedTL.TrustedCertificates) != 2 {
		t.Fatalf("expected staged view to show 2 certs, got %d", len(stagedTL.TrustedCertificates))
	}
}

func TestStageFromDifferentSessionConflicts(t *testing.T) {
	live := certstore.NewMemStore()
	m := New()
	noop := func(s certstore.Store) error { return nil }

	if err := m.StageTrustListChange("session-1", types.GroupApplication, live, noop); err != nil {
		t.Fatalf("StageTrustListChange: %v", err)
	}
	err := m.StageTrustListChange("session-2", types.GroupApplication, live, noop)
	if err == nil {
		t.Fatalf("expected a second session to be refused while a transaction is pending")
	}
	if types.CodeOf(err) != types.BadTransactionPending {
		t.Fatalf("expected BadTransactionPending, got %v", types.CodeOf(err))
	}
}

func TestCommitAppliesStagedChangesAndResets(t *testing.T) {
	live := certstore.NewMemStore()
	m := New()
	cert := []byte("cert-a")
	err := m.StageTrustListChange("session-1", types.GroupApplication, live, func(s certstore.Store) error {
		return s.SetTrustList(&types.TrustList{
			SpecifiedLists:      types.TrustListTrustedCertificates,
			TrustedCertificates: [][]byte{cert},
		})
	})
	if err != nil {
		t.Fatalf("StageTrustListChange: %v", err)
	}

	update := CertUpdate{Group: types.GroupApplication, Cert: []byte("new-cert"), Key: []byte("new-key")}
	if err := m.StageCertificateUpdate("session-1", update); err != nil {
		t.Fatalf("StageCertificateUpdate: %v", err)
	}

	applied := false
	result, err := m.Commit(map[types.Group]certstore.Store{types.GroupApplication: live}, func(store certstore.Store, u CertUpdate) error {
		applied = true
		return store.WriteIdentity(nil, u.Cert, u.Key)
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !applied {
		t.Fatalf("expected applyCertUpdate to be called")
	}
	if len(result.TrustListChanged) != 1 || result.TrustListChanged[0] != types.GroupApplication {
		t.Fatalf("expected TrustListChanged to report ApplCerts, got %v", result.TrustListChanged)
	}
	if len(result.CertificateChanged) != 1 {
		t.Fatalf("expected CertificateChanged to report one group, got %v", result.CertificateChanged)
	}

	liveTL, err := live.GetTrustList(types.TrustListTrustedCertificates)
	if err != nil {
		t.Fatalf("GetTrustList: %v", err)
	}
	if len(liveTL.TrustedCertificates) != 1 {
		t.Fatalf("expected commit to apply staged trust list, got %d certs", len(liveTL.TrustedCertificates))
	}
	gotCert, _, err := live.ReadIdentity()
	if err != nil {
		t.Fatalf("ReadIdentity: %v", err)
	}
	if string(gotCert) != "new-cert" {
		t.Fatalf("expected committed identity cert %q, got %q", "new-cert", gotCert)
	}

	if m.State() != StateFresh {
		t.Fatalf("expected StateFresh after commit, got %v", m.State())
	}
}

func TestCommitOnFreshIsNothingToDo(t *testing.T) {
	m := New()
	_, err := m.Commit(nil, nil)
	if types.CodeOf(err) != types.BadNothingToDo {
		t.Fatalf("expected BadNothingToDo, got %v", types.CodeOf(err))
	}
}

func TestAbortDiscardsStagedChanges(t *testing.T) {
	live := certstore.NewMemStore()
	m := New()
	err := m.StageTrustListChange("session-1", types.GroupApplication, live, func(s certstore.Store) error {
		return s.SetTrustList(&types.TrustList{
			SpecifiedLists:      types.TrustListTrustedCertificates,
			TrustedCertificates: [][]byte{[]byte("cert")},
		})
	})
	if err != nil {
		t.Fatalf("StageTrustListChange: %v", err)
	}
	if err := m.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if m.State() != StateFresh {
		t.Fatalf("expected StateFresh after abort, got %v", m.State())
	}

	err = m.StageTrustListChange("session-2", types.GroupApplication, live, func(s certstore.Store) error { return nil })
	if err != nil {
		t.Fatalf("expected a new session to open a fresh transaction after abort: %v", err)
	}
}

func TestAcquireAndStagedGroups(t *testing.T) {
	m := New()
	if err := m.Acquire("session-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := m.Acquire("session-1"); err != nil {
		t.Fatalf("re-Acquire by the same owner should succeed: %v", err)
	}
	if err := m.Acquire("session-2"); err == nil {
		t.Fatalf("expected a different session to be refused")
	}

	if err := m.StageCertificateUpdate("session-1", CertUpdate{Group: types.GroupHTTP}); err != nil {
		t.Fatalf("StageCertificateUpdate: %v", err)
	}
	groups := m.StagedGroups()
	found := false
	for _, g := range groups {
		if g == types.GroupHTTP {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected StagedGroups to include HttpCerts, got %v", groups)
	}
}

func TestAbortOnFreshIsNothingToDo(t *testing.T) {
	m := New()
	err := m.Abort()
	if types.CodeOf(err) != types.BadNothingToDo {
		t.Fatalf("expected BadNothingToDo, got %v", types.CodeOf(err))
	}
}
