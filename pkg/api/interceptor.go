package api

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadOnlyInterceptor builds a gRPC unary interceptor that only allows
// read-only push-management operations through. It is meant for a
// listener an operator exposes more broadly than the mTLS-protected
// write path - e.g. a local Unix socket a monitoring agent reads
// GetTrustList/GetRejectedList from without being able to trigger a
// transaction.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(codes.PermissionDenied,
				"write operations are not allowed on this listener")
		}
		return handler(ctx, req)
	}
}

// readOnlyMethods names the push-management dispatcher methods that
// only read state (see pkg/dispatch.Server); every other method stages
// or commits a change and is refused here.
var readOnlyMethods = map[string]bool{
	"GetTrustList":     true,
	"GetRejectedList":  true,
	"FileInfo":         true,
	"GetPosition":      true,
	"Read":             true,
}

// isReadOnlyMethod checks if a gRPC method is read-only.
func isReadOnlyMethod(method string) bool {
	parts := strings.Split(method, "/")
	if len(parts) < 2 {
		return false
	}
	return readOnlyMethods[parts[len(parts)-1]]
}
