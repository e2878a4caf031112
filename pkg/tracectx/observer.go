package tracectx

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Observer tracks the lifecycle of execution nodes and keeps the registry of
// trace context values in step with it: a node created by a traced node
// inherits the trace value, and a destroyed node loses its entry.
//
// An Observer must not be copied after first use.
type Observer struct {
	reg      *registry
	generate func() string

	created   atomic.Uint64
	destroyed atomic.Uint64
	started   atomic.Uint64
	generated atomic.Uint64
}

// Stats is a point-in-time snapshot of an Observer's counters.
type Stats struct {
	// Live is the number of registry entries.
	Live      int
	Created   uint64
	Destroyed uint64
	Started   uint64
	Generated uint64
}

// Option configures an Observer.
type Option func(*Observer)

// WithGenerator replaces the generator used by Start when no trace id is given.
func WithGenerator(fn func() string) Option {
	return func(o *Observer) {
		if fn != nil {
			o.generate = fn
		}
	}
}

// NewObserver creates an Observer with an empty registry.
func NewObserver(opts ...Option) *Observer {
	o := &Observer{
		reg:      newRegistry(),
		generate: GenerateTraceID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateTraceID returns a random trace id with a zero span suffix,
// e.g. "0b6f5b1e-8a4c-4c51-9a0e-2f6d43d9e7aa/0".
func GenerateTraceID() string {
	return uuid.NewString() + "/0"
}

// NodeCreated records that node was created while trigger was active. The
// node inherits trigger's trace value if it has one.
func (o *Observer) NodeCreated(node, trigger NodeID) {
	o.created.Add(1)
	if value, ok := o.reg.get(trigger); ok {
		o.reg.set(node, value)
	}
}

// NodeDestroyed drops the entry for node. Unknown nodes are ignored.
func (o *Observer) NodeDestroyed(node NodeID) {
	o.destroyed.Add(1)
	o.reg.delete(node)
}

// StartNode associates traceID with node, generating an id when traceID is
// empty. A later call for the same node overwrites the value.
func (o *Observer) StartNode(node NodeID, traceID string) string {
	if traceID == "" {
		traceID = o.generate()
		o.generated.Add(1)
	}
	return o.seed(node, traceID)
}

// seed stores traceID for node without generating, so an empty value is
// kept as the trace id.
func (o *Observer) seed(node NodeID, traceID string) string {
	o.started.Add(1)
	o.reg.set(node, traceID)
	return traceID
}

// TraceContextOf returns the trace value visible at node.
func (o *Observer) TraceContextOf(node NodeID) (string, bool) {
	return o.reg.get(node)
}

// Start associates traceID with the calling goroutine's node and returns the
// effective id. An empty traceID generates a fresh one.
func (o *Observer) Start(traceID string) string {
	return o.StartNode(CurrentNode(), traceID)
}

// GetTraceContext returns the trace value visible at the calling goroutine's
// node, or false when the goroutine is not part of a traced request.
func (o *Observer) GetTraceContext() (string, bool) {
	return o.reg.get(CurrentNode())
}

// Size returns the number of live registry entries.
func (o *Observer) Size() int {
	return o.reg.len()
}

// Stats returns a snapshot of the observer's counters.
func (o *Observer) Stats() Stats {
	return Stats{
		Live:      o.reg.len(),
		Created:   o.created.Load(),
		Destroyed: o.destroyed.Load(),
		Started:   o.started.Load(),
		Generated: o.generated.Load(),
	}
}

// child captures the caller's trace value at creation time and returns fn
// wrapped so that it runs as a new execution node. The capture happens on the
// creating goroutine: the trigger may be gone by the time the child runs.
func (o *Observer) child(fn func()) func() {
	value, ok := o.reg.get(CurrentNode())
	return func() {
		node := CurrentNode()
		o.created.Add(1)
		if ok {
			o.reg.set(node, value)
		}
		defer o.NodeDestroyed(node)
		fn()
	}
}

// Go runs fn in a new goroutine that inherits the caller's trace context.
func (o *Observer) Go(fn func()) {
	go o.child(fn)()
}

// AfterFunc waits for d to elapse and then calls fn in its own goroutine with
// the trace context that was visible when AfterFunc was called. A timer that
// is stopped before firing leaves nothing behind.
func (o *Observer) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, o.child(fn))
}

// Scope is a unit of synchronous work hosted on an existing goroutine.
type Scope struct {
	o        *Observer
	node     NodeID
	previous string
	restore  bool
	done     bool
}

// Enter opens a Scope on the calling goroutine. Whatever the goroutine's node
// held before is put back by Exit, so goroutines that serve one request after
// another never carry a trace id across requests.
func (o *Observer) Enter() *Scope {
	node := CurrentNode()
	previous, ok := o.reg.get(node)
	o.created.Add(1)
	return &Scope{o: o, node: node, previous: previous, restore: ok}
}

// Exit closes the scope. It must be called on the goroutine that called
// Enter; calling it more than once has no effect.
func (s *Scope) Exit() {
	if s.done {
		return
	}
	s.done = true
	if s.restore {
		s.o.destroyed.Add(1)
		s.o.reg.set(s.node, s.previous)
		return
	}
	s.o.NodeDestroyed(s.node)
}
