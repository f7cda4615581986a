/*
Package events provides an in-memory, non-blocking pub/sub broker used to
announce push-management activity: trust-list changes, certificate
add/remove/reject decisions, transaction commit/abort, channels the
post-commit sweep closes, and sessions the janitor reclaims.

A Broker owns one internal event channel and a set of per-subscriber
buffered channels; Publish never blocks on a slow subscriber (a full
subscriber buffer simply drops the event rather than stalling the
broadcast loop). This keeps the Dispatcher's commit path from depending on
whatever is listening - metrics collection, audit logging, or nothing at
all.
*/
package events
