/*
Package session persists the push-management core's session-liveness
table: for every OPC UA session that has touched a certificate group or
a trust-list file handle, when it was last seen alive. The Session
Janitor (C6) reads this table to decide which sessions have gone away
and reclaim their PENDING transaction ownership and open file handles.

Registry generalizes the teacher's TokenManager (pkg/manager/token.go) -
a mutex-guarded map of token to expiry, with a Cleanup* sweep method -
from an in-memory, process-lifetime map to a bbolt-backed table so
session liveness survives a core restart, using the teacher's own
go.etcd.io/bbolt dependency and the one-bucket-per-concern pattern from
pkg/storage/boltdb.go. Unlike a join token, a session has no fixed
expiry: IsLive takes the TTL as an argument because the threshold for
"gone" is a server-wide timeout, not a property of the session record
itself.
*/
package session
