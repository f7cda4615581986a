/*
Package channels tracks the core's open secure channels so a committed
trust-list change can trigger the post-commit sweep spec.md section 4.5
requires: invalidating every channel whose peer certificate is no
longer trusted (or, for a stricter policy, every channel at all) once
ApplyChanges commits.

Registry's subscriber-set shape - a mutex-guarded map, snapshotted
before acting on it - is grounded on the teacher's events.Broker
(pkg/events/events.go), generalized from "who is listening for events"
to "which channels are open and what certificate authenticated them."
*/
package channels
