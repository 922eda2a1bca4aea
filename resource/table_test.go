package resource

import (
	"errors"
	"sync"
	"testing"
)

type dropCounter struct {
	drops int
}

func (d *dropCounter) Drop() { d.drops++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable("js")

	h, err := table.Put("function", "test value")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, tag, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" || tag != "function" {
		t.Fatalf("Expected ('test value', function), got (%v, %s)", val, tag)
	}

	val, ok = table.Release(h)
	if !ok {
		t.Fatal("Release failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, _, ok := table.Get(h); ok {
		t.Fatal("Expected Get to fail after Release")
	}
	if _, ok := table.Release(h); ok {
		t.Fatal("Expected double Release to fail")
	}
}

func TestTable_ZeroHandle(t *testing.T) {
	table := NewTable("js")
	if _, _, ok := table.Get(0); ok {
		t.Fatal("handle 0 must be invalid")
	}
	if _, ok := table.Release(0); ok {
		t.Fatal("handle 0 must be invalid")
	}
}

func TestTable_StaleHandleAfterReuse(t *testing.T) {
	table := NewTable("js")

	h1, _ := table.Put("a", 1)
	table.Release(h1)
	h2, _ := table.Put("b", 2)

	if h1 == h2 {
		t.Fatalf("reused slot must yield a new handle, got %d twice", h1)
	}
	if _, _, ok := table.Get(h1); ok {
		t.Fatal("stale handle resolved after slot reuse")
	}
	if v, _, ok := table.Get(h2); !ok || v != 2 {
		t.Fatalf("Get(h2) = %v, %v", v, ok)
	}
}

func TestTable_Len(t *testing.T) {
	table := NewTable("js")

	handles := make([]Handle, 5)
	for i := range handles {
		handles[i], _ = table.Put("n", i)
	}
	if table.Len() != 5 {
		t.Fatalf("Len = %d, want 5", table.Len())
	}

	table.Release(handles[1])
	table.Release(handles[3])
	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3", table.Len())
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable("js")
	for i := 0; i < 4; i++ {
		table.Put("n", i)
	}

	sum := 0
	table.Each(func(_ Handle, _ string, v any) bool {
		sum += v.(int)
		return true
	})
	if sum != 6 {
		t.Fatalf("sum = %d, want 6", sum)
	}

	count := 0
	table.Each(func(Handle, string, any) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("early stop visited %d entries", count)
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable("js")
	d := &dropCounter{}
	table.Put("object", d)
	table.Put("object", "plain")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.drops != 1 {
		t.Fatalf("Drop called %d times, want 1", d.drops)
	}
	if err := table.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if d.drops != 1 {
		t.Fatal("second Close must not drop again")
	}

	if _, err := table.Put("x", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Put after Close = %v, want ErrClosed", err)
	}
	if table.Len() != 0 {
		t.Fatalf("Len after Close = %d", table.Len())
	}
}

func TestTable_Observers(t *testing.T) {
	table := NewTable("js")

	var events []Event
	cancel := table.Subscribe(ObserverFunc(func(e Event) {
		events = append(events, e)
	}))

	h, _ := table.Put("promise", "p")
	table.Release(h)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventCreated || events[0].Tag != "promise" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != EventReleased || events[1].Handle != h {
		t.Errorf("second event = %+v", events[1])
	}

	cancel()
	table.Put("x", 1)
	if len(events) != 2 {
		t.Fatal("observer notified after cancel")
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable("js")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h, err := table.Put("n", g*1000+i)
				if err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if v, _, ok := table.Get(h); !ok || v != g*1000+i {
					t.Errorf("Get(%d) = %v, %v", h, v, ok)
					return
				}
				table.Release(h)
			}
		}(g)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0", table.Len())
	}
}
