/*
Package txn implements the Transaction Manager (C4): the core's
at-most-one-PENDING-transaction model for staging trust-list and
identity changes until ApplyChanges commits them atomically, or the
caller aborts.

Manager.Commit generalizes the teacher's WarrenFSM.Apply
(pkg/manager/fsm.go) - a single mutex-guarded apply step that takes a
batch of staged operations and applies them to the live store - from a
Raft log entry's single Command to a PENDING transaction's full set of
staged trust-list and certificate updates. There is no Raft log here:
the core runs a single event loop, so "commit" means "apply the staged
operations to the live stores right now," not "replicate a log entry."
bbolt's Tx type (Update/View with copy-on-write pages) is the conceptual
model for why staging happens against a cloned snapshot instead of the
live store directly - a transaction mutates its own copy freely and
either replaces the live state wholesale at commit or is discarded
entirely on Abort.
*/
package txn
