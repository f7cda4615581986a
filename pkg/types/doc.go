/*
Package types holds the data model shared by every push-management
component: certificate groups, the four-set TrustList bundle and its
selector mask, per-group FileInfo, and the closed StatusCode taxonomy the
Dispatcher's external contract is defined in terms of.

CoreError pairs a StatusCode with the operation name and underlying cause,
so a failure can be translated to a gRPC status at the dispatch boundary
without re-parsing an error string. certstore and trustfile return their
failures as *CoreError, and so does txn for its own refusals (errors from
the callbacks it runs are passed through unchanged). certverify returns
plain errors, which the dispatcher wraps in a *CoreError.
*/
package types
