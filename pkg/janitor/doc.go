/*
Package janitor implements the Session Janitor (C6): a ticker-driven
background loop that periodically reclaims resources - open trust-list
file handles and PENDING transaction ownership - left behind by
sessions that disappeared without a clean CLOSE or Abort.

Janitor's start/stop shape is grounded on the teacher's
MetricsCollector (pkg/manager/metrics_collector.go): a ticker plus a
stop channel, selected over in a goroutine, with Stop closing the
channel so the select's second case unblocks. The tick callback here
returns a bool so the janitor can log at Info only when it actually
reclaimed something, rather than on every tick.
*/
package janitor
