/*
Package dispatch implements the Push-Management Dispatcher (C5): it
binds inbound method invocations (UpdateCertificate, CreateSigningRequest,
GetRejectedList, AddCertificate, RemoveCertificate, the trust-list file
verbs, and ApplyChanges) to the Certificate Store, Certificate Verifier,
Trust-List Virtual File, and Transaction Manager components, enforcing
every pre-condition spec.md section 4.5 lists before touching state.

Server's handler-per-method shape and precondition-check-first style are
grounded on the teacher's pkg/api/server.go (one method per RPC, an
early guard clause before any state mutation) and its ensureLeader
pattern - generalized from "refuse non-leader writes" to "refuse writes
against a busy file handle, a foreign transaction, or an unsupported
group." StatusCode translation to gRPC codes follows the teacher's
pkg/api/interceptor.go, which is the only place in the teacher's tree
that imports google.golang.org/grpc/codes and /status directly.
*/
package dispatch
