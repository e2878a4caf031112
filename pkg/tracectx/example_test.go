package tracectx_test

import (
	"fmt"

	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
)

func ExampleObserver_Go() {
	o := tracectx.NewObserver()

	scope := o.Enter()
	defer scope.Exit()
	o.Start("req-42")

	done := make(chan struct{})
	o.Go(func() {
		defer close(done)
		id, _ := o.GetTraceContext()
		fmt.Println(id)
	})
	<-done
	// Output: req-42
}

func ExampleObserver_NodeCreated() {
	o := tracectx.NewObserver()

	o.StartNode(1, "req-42")
	o.NodeCreated(2, 1)
	o.NodeDestroyed(1)

	id, ok := o.TraceContextOf(2)
	fmt.Println(id, ok)
	o.NodeDestroyed(2)
	fmt.Println(o.Size())
	// Output:
	// req-42 true
	// 0
}
