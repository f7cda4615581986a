package dispatch

import (
	"errors"

	"github.com/nexusgds/pushcore/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCStatus translates err into a gRPC status error, so a thin
// transport wrapper around Server can return err from a dispatch method
// directly to status.Convert without re-deriving the code from a string.
// This mirrors the teacher's interceptor.go, the only place in the
// teacher's tree that builds a status.Errorf directly - generalized from
// a single fixed PermissionDenied into a full StatusCode-to-codes.Code
// table.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var ce *types.CoreError
	if !errors.As(err, &ce) {
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(grpcCodeFor(ce.Code), ce.Error())
}

func grpcCodeFor(code types.StatusCode) codes.Code {
	switch code {
	case types.Good:
		return codes.OK
	case types.BadTypeMismatch, types.BadInvalidArgument:
		return codes.InvalidArgument
	case types.BadInvalidState, types.BadNothingToDo:
		return codes.FailedPrecondition
	case types.BadTransactionPending:
		return codes.FailedPrecondition
	case types.BadUserAccessDenied:
		return codes.PermissionDenied
	case types.BadNotWritable, types.BadNotReadable, types.BadNotSupported:
		return codes.Unimplemented
	case types.BadCertificateInvalid,
		types.BadCertificateUriInvalid,
		types.BadCertificateUntrusted,
		types.BadCertificateTimeInvalid,
		types.BadCertificateRevoked,
		types.BadCertificateRevocationUnknown,
		types.BadCertificateIssuerRevocationUnknown,
		types.BadCertificateUseNotAllowed,
		types.BadSecurityChecksFailed:
		return codes.InvalidArgument
	case types.BadOutOfMemory:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}
