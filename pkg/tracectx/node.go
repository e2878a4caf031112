package tracectx

import (
	"bytes"
	"runtime"
	"strconv"
)

// NodeID identifies an execution node. For work started through this package
// it is the id of the goroutine hosting the work; ids are never reused within
// a process.
type NodeID int64

var goroutinePrefix = []byte("goroutine ")

// CurrentNode returns the execution node of the calling goroutine.
func CurrentNode() NodeID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		// The runtime's stack header format is stable; a parse failure means
		// the process cannot be traced at all.
		panic("tracectx: cannot determine goroutine id: " + err.Error())
	}
	return NodeID(id)
}
