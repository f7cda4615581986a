/*
Package api provides the HTTP-facing operational surface around the
push-management dispatcher: liveness/readiness checks, the Prometheus
metrics endpoint, and a gRPC read-only interceptor an operator can
layer in front of a narrower listener.

It deliberately does not define a gRPC service implementation: the
dispatcher's method surface (pkg/dispatch.Server) is exercised directly
by cmd/pushcored today. Wiring it behind a generated gRPC service would
require a .proto contract this module was never given; ReadOnlyInterceptor
is kept ready for that listener once one exists, since it operates
purely on gRPC method names and needs no generated types to do its job.
*/
package api
