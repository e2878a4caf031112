// Package tracectx keeps a trace id attached to all of the work a request
// fans out into, without passing the id through every function signature.
//
// Each unit of work is an execution node (see NodeID). A process-wide
// Observer holds a registry from live nodes to trace ids: Start seeds the
// current node, nodes spawned through Go, AfterFunc or a Group copy the value
// of the node that created them, and a node's entry is dropped as soon as its
// work returns. GetTraceContext reads the value for the current node.
//
// Example usage:
//
//	handler := tracectx.HTTPMiddleware()(mux)
//
//	func (s *server) handle(w http.ResponseWriter, r *http.Request) {
//	    tracectx.Go(func() {
//	        id, _ := tracectx.GetTraceContext() // same id as the request
//	        _ = id
//	    })
//	}
//
// Goroutines started with a plain go statement are not observed. They can
// still recover the trace id from a context.Context via FromContext.
package tracectx

import (
	"context"
	"time"
)

// defaultObserver is installed at package initialization, before any caller
// can reach Start or GetTraceContext.
var defaultObserver = NewObserver()

// Default returns the process-wide Observer used by the package functions.
func Default() *Observer {
	return defaultObserver
}

// Start seeds the current node with traceID (generated when empty) and
// returns the effective id.
func Start(traceID string) string {
	return defaultObserver.Start(traceID)
}

// GetTraceContext returns the trace id visible at the current node.
func GetTraceContext() (string, bool) {
	return defaultObserver.GetTraceContext()
}

// Go runs fn in a new goroutine that inherits the current trace id.
func Go(fn func()) {
	defaultObserver.Go(fn)
}

// AfterFunc calls fn after d in a goroutine that inherits the current trace id.
func AfterFunc(d time.Duration, fn func()) *time.Timer {
	return defaultObserver.AfterFunc(d, fn)
}

// NewGroup returns a Group on the default Observer.
func NewGroup(ctx context.Context) (*Group, context.Context) {
	return defaultObserver.NewGroup(ctx)
}

// Enter opens a Scope on the default Observer.
func Enter() *Scope {
	return defaultObserver.Enter()
}
