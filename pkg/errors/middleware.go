package errors

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoveryFunc turns a recovered panic value into an error.
type RecoveryFunc func(interface{}) error

// DefaultRecoveryFunc returns a PermanentError holding the panic value and
// the stack. An error panic value is kept as the cause.
func DefaultRecoveryFunc(p interface{}) error {
	cause, _ := p.(error)
	return NewPermanent(fmt.Sprintf("panic recovered: %v\nstack trace:\n%s", p, debug.Stack()), cause)
}

func orDefault(fn RecoveryFunc) RecoveryFunc {
	if fn == nil {
		return DefaultRecoveryFunc
	}
	return fn
}

// rpcRecover converts a panic into a status error on *err. Untyped
// recovery results become codes.Internal rather than codes.Unknown.
func rpcRecover(fn RecoveryFunc, err *error) {
	p := recover()
	if p == nil {
		return
	}
	rerr := fn(p)
	if Classify(rerr) == KindUnknown {
		*err = status.Error(codes.Internal, rerr.Error())
		return
	}
	*err = ToGRPCError(rerr)
}

// RecoveryMiddleware writes a panicking handler's recovered error with
// WriteHTTPError. A nil fn means DefaultRecoveryFunc.
func RecoveryMiddleware(fn RecoveryFunc) func(http.Handler) http.Handler {
	fn = orDefault(fn)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					WriteHTTPError(w, fn(p))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// UnaryServerInterceptor is the gRPC unary form of RecoveryMiddleware.
func UnaryServerInterceptor(fn RecoveryFunc) grpc.UnaryServerInterceptor {
	fn = orDefault(fn)
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer rpcRecover(fn, &err)
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the gRPC stream form of RecoveryMiddleware.
func StreamServerInterceptor(fn RecoveryFunc) grpc.StreamServerInterceptor {
	fn = orDefault(fn)
	return func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer rpcRecover(fn, &err)
		return handler(srv, ss)
	}
}
