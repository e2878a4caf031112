package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[Kind]codes.Code{
	KindValidation:   codes.InvalidArgument,
	KindInvalidInput: codes.InvalidArgument,
	KindNotFound:     codes.NotFound,
	KindUnauthorized: codes.Unauthenticated,
	KindForbidden:    codes.PermissionDenied,
	KindTemporary:    codes.Unavailable,
	KindPermanent:    codes.Internal,
	KindUnknown:      codes.Unknown,
}

// GRPCStatus converts an error to a gRPC status. Errors that already carry a
// gRPC status keep it.
func GRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	return status.New(grpcCodes[Classify(err)], err.Error())
}

// ToGRPCError converts an error to a gRPC error that can be returned from a gRPC handler.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	return GRPCStatus(err).Err()
}
