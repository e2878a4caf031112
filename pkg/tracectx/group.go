package tracectx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group is an errgroup whose goroutines are child nodes of the goroutine
// that created the Group's members.
type Group struct {
	o *Observer
	g *errgroup.Group
}

// NewGroup returns a Group bound to o and a derived context that is canceled
// the first time a member returns a non-nil error or Wait returns.
func (o *Observer) NewGroup(ctx context.Context) (*Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &Group{o: o, g: g}, ctx
}

// Go runs fn in a new goroutine that inherits the caller's trace context.
func (g *Group) Go(fn func() error) {
	var err error
	run := g.o.child(func() { err = fn() })
	g.g.Go(func() error {
		run()
		return err
	})
}

// SetLimit limits the number of active goroutines in the group. A negative
// value means no limit.
func (g *Group) SetLimit(n int) {
	g.g.SetLimit(n)
}

// Wait blocks until every member has returned and its registry entry has
// been released, then returns the first non-nil error.
func (g *Group) Wait() error {
	return g.g.Wait()
}
