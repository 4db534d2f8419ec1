package syncx

import (
	"sync"
	"testing"
)

func TestValue(t *testing.T) {
	v := NewValue("idle")
	if got := v.Load(); got != "idle" {
		t.Errorf("Load() = %q, want idle", got)
	}
	v.Store("processing")
	if old := v.Swap("validated"); old != "processing" {
		t.Errorf("Swap() = %q, want processing", old)
	}
	if got := v.Load(); got != "validated" {
		t.Errorf("Load() = %q, want validated", got)
	}
}

func TestValueConcurrent(t *testing.T) {
	v := NewValue(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			v.Store(n)
		}(i)
		go func() {
			defer wg.Done()
			_ = v.Load()
		}()
	}
	wg.Wait()
}

type entry struct {
	name string
	tags []string
}

func cloneEntry(e entry) entry {
	e.tags = append([]string(nil), e.tags...)
	return e
}

func TestMapClonesValues(t *testing.T) {
	m := NewMap[string](cloneEntry)
	in := entry{name: "slot", tags: []string{"a"}}
	m.Store("slot", in)

	in.tags[0] = "mutated"
	got, ok := m.Load("slot")
	if !ok || got.tags[0] != "a" {
		t.Fatalf("Load() = %+v, %v; stored value aliased caller memory", got, ok)
	}

	got.tags[0] = "mutated"
	again, _ := m.Load("slot")
	if again.tags[0] != "a" {
		t.Error("loaded value aliases map memory")
	}
}

func TestMapOrderedValues(t *testing.T) {
	m := NewMap[string, int](nil)
	m.Store("c", 3)
	m.Store("a", 1)
	m.Store("b", 2)

	got := m.Values()
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("Values() = %v, want [1 2 3]", got)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d", m.Len())
	}
	if !m.Delete("b") || m.Delete("b") {
		t.Error("Delete should report presence once")
	}
	if _, ok := m.Load("b"); ok {
		t.Error("deleted key still present")
	}
}
