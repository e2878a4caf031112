package logging

import (
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/rs/zerolog"
)

// TraceHook adds the trace field to every event. The id comes from the
// event's context when it carries one, otherwise from the execution node
// writing the event. Events outside any trace get no field.
type TraceHook struct {
	observer *tracectx.Observer
}

// NewTraceHook creates a hook reading from o, or from the default Observer
// when o is nil.
func NewTraceHook(o *tracectx.Observer) TraceHook {
	if o == nil {
		o = tracectx.Default()
	}
	return TraceHook{observer: o}
}

// Run implements zerolog.Hook.
func (h TraceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if id, ok := h.observer.FromContext(e.GetCtx()); ok {
		e.Str(TraceID, id)
	}
}
