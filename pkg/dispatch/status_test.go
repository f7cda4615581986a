package dispatch

import (
	"errors"
	"testing"

	"github.com/nexusgds/pushcore/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCStatusTranslatesCoreError(t *testing.T) {
	err := types.NewError("dispatch.Test", types.BadUserAccessDenied, errors.New("nope"))
	gerr := GRPCStatus(err)
	st, ok := status.FromError(gerr)
	if !ok {
		t.Fatalf("expected a gRPC status error")
	}
	if st.Code() != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", st.Code())
	}
}

func TestGRPCStatusFallsBackToInternalForPlainErrors(t *testing.T) {
	gerr := GRPCStatus(errors.New("boom"))
	st, ok := status.FromError(gerr)
	if !ok {
		t.Fatalf("expected a gRPC status error")
	}
	if st.Code() != codes.Internal {
		t.Fatalf("expected Internal, got %v", st.Code())
	}
}

func TestGRPCStatusNilIsNil(t *testing.T) {
	if GRPCStatus(nil) != nil {
		t.Fatalf("expected nil error to translate to nil")
	}
}
