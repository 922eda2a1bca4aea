package runtime

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/engine/js"
	"github.com/wippyai/synapse/errors"
)

const workflowsJS = `
const { sleep } = require("synapse");
exports.echo = (v) => v;
exports.delayed = async (ms, v) => await sleep(ms, v);
`

// sliceTracker counts calls between Converting and the end of their
// synchronous slice.
type sliceTracker struct {
	states map[string]engine.State
	mu     sync.Mutex
	active int
	max    int
}

func (s *sliceTracker) observe(id string, st engine.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.states[id]
	if st.InSlice() && !prev.InSlice() {
		s.active++
		if s.active > s.max {
			s.max = s.active
		}
	}
	if !st.InSlice() && prev.InSlice() {
		s.active--
	}
	s.states[id] = st
}

func TestJS_OneCallInSlice(t *testing.T) {
	tracker := &sliceTracker{states: make(map[string]engine.State)}
	rt := newReady(t, js.New(js.WithModuleSource("wf", workflowsJS)), WithObserver(tracker.observe))

	var futures []*Future
	for i := 0; i < 20; i++ {
		call := engine.Call{
			Callable: engine.Callable{ID: "echo" + strconv.Itoa(i), Import: "wf", Attr: "echo"},
			Args:     []clv.Value{clv.Int(int64(i))},
		}
		if i%2 == 1 {
			call.Callable = engine.Callable{ID: "delayed" + strconv.Itoa(i), Import: "wf", Attr: "delayed"}
			call.Args = []clv.Value{clv.Int(int64(20 - i)), clv.Int(int64(i))}
		}
		f, err := rt.Submit(context.Background(), call)
		if err != nil {
			t.Fatal(err)
		}
		futures = append(futures, f)
	}

	for i, f := range futures {
		v, err := f.Result()
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !clv.Equal(v, clv.Int(int64(i))) {
			t.Errorf("call %d = %s", i, v)
		}
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if tracker.max != 1 {
		t.Errorf("max calls in slice = %d, want 1", tracker.max)
	}
}

func TestJS_SlowThenFast(t *testing.T) {
	rt := newReady(t, js.New(js.WithModuleSource("wf", workflowsJS)))

	slow, err := rt.Submit(context.Background(), engine.Call{
		Callable: engine.Callable{ID: "slow", Import: "wf", Attr: "delayed"},
		Args:     []clv.Value{clv.Int(300), clv.String("slow")},
	})
	if err != nil {
		t.Fatal(err)
	}
	fast, err := rt.Submit(context.Background(), engine.Call{
		Callable: engine.Callable{ID: "fast", Import: "wf", Attr: "delayed"},
		Args:     []clv.Value{clv.Int(1), clv.String("fast")},
	})
	if err != nil {
		t.Fatal(err)
	}

	v, err := fast.Result()
	if err != nil || !clv.Equal(v, clv.String("fast")) {
		t.Fatalf("fast = %s, %v", v, err)
	}
	select {
	case <-slow.Done():
		t.Fatal("slow call finished before fast call")
	default:
	}

	v, err = slow.Result()
	if err != nil || !clv.Equal(v, clv.String("slow")) {
		t.Fatalf("slow = %s, %v", v, err)
	}
}

func TestJS_LookupThenSuccess(t *testing.T) {
	rt := newReady(t, js.New(js.WithModuleSource("wf", workflowsJS)))

	_, err := rt.Call(context.Background(), engine.Call{
		Callable: engine.Callable{ID: "bad", Import: "wf", Attr: "nope"},
	})
	if !stderrors.Is(err, errors.ErrLookup) {
		t.Fatalf("expected lookup error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := rt.Call(ctx, engine.Call{
		Callable: engine.Callable{ID: "good", Import: "wf", Attr: "echo"},
		Args:     []clv.Value{clv.String("ok")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !clv.Equal(v, clv.String("ok")) {
		t.Errorf("result = %s", v)
	}
}
