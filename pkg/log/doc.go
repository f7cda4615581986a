/*
Package log provides structured logging for the push-management core, built
on zerolog.

A single package-level Logger is configured once via Init and then narrowed
with child-logger constructors (WithComponent, WithGroup, WithSession,
WithHandle) so that every log line from C1-C6 carries the certificate group,
session ID, or file handle it concerns without callers re-typing field names.

Console output is used for local/dev runs; JSON output is used in production
so log lines can be shipped to an aggregator. Degenerate-store accept-all
decisions and verification failures are logged at Warn; the session janitor
logs at Info when it reclaims a transaction or file handle.
*/
package log
