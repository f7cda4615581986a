/*
Package trustfile implements the Trust-List Virtual File (C3): the
OPEN/OPEN_WITH_MASKS/READ/WRITE/GET_POSITION/SET_POSITION/CLOSE state
machine spec.md section 4.3 defines for streaming a group's trust list
to and from a client a chunk at a time, instead of requiring the whole
serialized blob to fit in one request.

Manager tracks open handles the way the reference SMB2 implementation
tracks open files (other_examples' dittofs handler.go: a mutex-guarded
map keyed by a generated handle, one entry per open), scaled down from
a sync.Map/atomic-counter design to a plain map guarded by one mutex
per group, since the core's single event loop never has two goroutines
racing to open the same group's file concurrently.

Manager knows nothing about trust-list encoding: Open and OpenWithMasks
take a snapshot producer callback and Close returns the accumulated
write buffer verbatim, leaving serialization to the caller (pkg/dispatch).
*/
package trustfile
