package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("resource table closed")
	ErrFull   = errors.New("resource table full")
)

type entry struct {
	value any
	tag   string
	gen   uint8
	valid bool
}

type observerSlot struct {
	o  Observer
	id uint64
}

// Table maps handles to native values for one owner.
// It is safe for concurrent use.
type Table struct {
	owner     string
	entries   []entry
	freeList  []uint32
	observers []observerSlot
	nextObs   uint64
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table owned by owner.
func NewTable(owner string) *Table {
	return &Table{
		owner:    owner,
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Owner returns the name stamped into refs minted from this table.
func (t *Table) Owner() string {
	return t.owner
}

// Put stores a value and returns its handle.
func (t *Table) Put(tag string, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	var h Handle
	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		e := &t.entries[idx]
		e.gen++
		e.value = value
		e.tag = tag
		e.valid = true
		h = makeHandle(idx, e.gen)
	} else {
		if len(t.entries) >= maxSlots {
			t.mu.Unlock()
			return 0, ErrFull
		}
		t.entries = append(t.entries, entry{value: value, tag: tag, valid: true})
		h = makeHandle(uint32(len(t.entries)-1), 0)
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Tag: tag, Value: value})
	return h, nil
}

// lookup must be called with t.mu held.
func (t *Table) lookup(h Handle) (*entry, uint32, bool) {
	idx, ok := h.index()
	if !ok || int(idx) >= len(t.entries) {
		return nil, 0, false
	}
	e := &t.entries[idx]
	if !e.valid || e.gen != h.generation() {
		return nil, 0, false
	}
	return e, idx, true
}

// Get retrieves a value and its tag by handle.
func (t *Table) Get(h Handle) (any, string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, _, ok := t.lookup(h)
	if !ok {
		return nil, "", false
	}
	return e.value, e.tag, true
}

// Release removes a value and returns it. The handle is invalid afterwards.
func (t *Table) Release(h Handle) (any, bool) {
	t.mu.Lock()
	e, idx, ok := t.lookup(h)
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	value, tag := e.value, e.tag
	e.value = nil
	e.tag = ""
	e.valid = false
	t.freeList = append(t.freeList, idx)
	t.mu.Unlock()

	t.notify(Event{Type: EventReleased, Handle: h, Tag: tag, Value: value})
	return value, true
}

// Len returns the number of live values.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Each iterates over live values until fn returns false.
// fn must not call back into the table.
func (t *Table) Each(fn func(Handle, string, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.entries {
		e := &t.entries[i]
		if e.valid {
			if !fn(makeHandle(uint32(i), e.gen), e.tag, e.value) {
				return
			}
		}
	}
}

// Subscribe adds an observer for lifecycle events and returns a function
// that removes it.
func (t *Table) Subscribe(o Observer) (cancel func()) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, observerSlot{id: id, o: o})
	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	observers := t.observers
	t.obsMu.RUnlock()

	for _, s := range observers {
		s.o.OnResourceEvent(e)
	}
}

// Close releases all values, calling Drop on those implementing Dropper,
// and stops accepting new ones. Close is idempotent.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	entries := t.entries
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	for i := range entries {
		if !entries[i].valid {
			continue
		}
		if d, ok := entries[i].value.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}
