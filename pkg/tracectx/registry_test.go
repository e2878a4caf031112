package tracectx

import (
	"sync"
	"testing"
)

// TestRegistrySetGetDelete verifies basic registry operations
func TestRegistrySetGetDelete(t *testing.T) {
	r := newRegistry()

	if _, ok := r.get(1); ok {
		t.Fatal("get() on empty registry reported an entry")
	}

	r.set(1, "a")
	r.set(33, "b") // same shard as 1
	if v, ok := r.get(1); !ok || v != "a" {
		t.Errorf("get(1) = %q, %v, want %q, true", v, ok, "a")
	}
	if v, ok := r.get(33); !ok || v != "b" {
		t.Errorf("get(33) = %q, %v, want %q, true", v, ok, "b")
	}

	r.set(1, "c")
	if v, _ := r.get(1); v != "c" {
		t.Errorf("get(1) after overwrite = %q, want %q", v, "c")
	}

	r.delete(1)
	r.delete(1)
	r.delete(999)
	if _, ok := r.get(1); ok {
		t.Error("entry still present after delete")
	}
	if n := r.len(); n != 1 {
		t.Errorf("len() = %d, want 1", n)
	}
}

// TestRegistryNegativeNode verifies node ids outside the usual range still map to a shard
func TestRegistryNegativeNode(t *testing.T) {
	r := newRegistry()
	r.set(-7, "neg")
	if v, ok := r.get(-7); !ok || v != "neg" {
		t.Errorf("get(-7) = %q, %v", v, ok)
	}
}

// TestRegistryConcurrentAccess verifies the registry under parallel writers
func TestRegistryConcurrentAccess(t *testing.T) {
	r := newRegistry()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				node := NodeID(w*1000 + i)
				r.set(node, "v")
				if _, ok := r.get(node); !ok {
					t.Errorf("missing entry for node %d", node)
				}
				r.delete(node)
			}
		}(w)
	}
	wg.Wait()

	if n := r.len(); n != 0 {
		t.Errorf("len() = %d after all deletes, want 0", n)
	}
}

// TestCurrentNode verifies goroutines get distinct, stable node ids
func TestCurrentNode(t *testing.T) {
	self := CurrentNode()
	if self <= 0 {
		t.Fatalf("CurrentNode() = %d, want positive id", self)
	}
	if again := CurrentNode(); again != self {
		t.Errorf("CurrentNode() changed within one goroutine: %d then %d", self, again)
	}

	other := make(chan NodeID)
	go func() { other <- CurrentNode() }()
	if id := <-other; id == self {
		t.Errorf("two goroutines share node id %d", id)
	}
}
