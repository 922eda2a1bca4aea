package runtime

import (
	"context"
	"sync"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/errors"
)

// Future is the one-shot result of a submitted call.
type Future struct {
	err   error
	done  chan struct{}
	value clv.Value
	id    string
	once  sync.Once
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the call id.
func (f *Future) ID() string {
	return f.id
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the call completes.
func (f *Future) Result() (clv.Value, error) {
	<-f.done
	return f.value, f.err
}

// Wait blocks until the call completes or ctx ends. Giving up on a call
// does not cancel it.
func (f *Future) Wait(ctx context.Context) (clv.Value, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return clv.Value{}, errors.New(errors.PhaseAwait, errors.KindInvocation).
			Cause(ctx.Err()).
			Detail("stopped waiting for call %s", f.id).
			User().
			Build()
	}
}

// complete resolves the future. Only the first completion wins; onWin runs
// for it before waiters are released.
func (f *Future) complete(v clv.Value, err error, onWin func()) {
	f.once.Do(func() {
		f.value, f.err = v, err
		if onWin != nil {
			onWin()
		}
		close(f.done)
	})
}
