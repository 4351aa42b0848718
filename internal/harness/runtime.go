package harness

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// errTeardownTimeout is returned by Stop when tasks outlive the grace period.
var errTeardownTimeout = errors.New("runtime tasks still running after teardown grace")

// runtime is the isolated execution scope of one attempt. Everything an
// attempt starts runs in its group and is cancelled and awaited by Stop.
type runtime struct {
	id       string
	deadline context.Context // carries the exchange timeout
	ctx      context.Context // group context derived from deadline
	cancel   context.CancelFunc
	group    *errgroup.Group

	stopOnce sync.Once
	drained  chan struct{}
	waitErr  error // set before drained is closed
}

func newRuntime(parent context.Context, timeout time.Duration) *runtime {
	deadline, cancel := context.WithTimeout(parent, timeout)
	group, ctx := errgroup.WithContext(deadline)
	return &runtime{
		id:       uuid.NewString(),
		deadline: deadline,
		ctx:      ctx,
		cancel:   cancel,
		group:    group,
		drained:  make(chan struct{}),
	}
}

// Go starts fn inside the runtime.
func (r *runtime) Go(fn func(ctx context.Context) error) {
	r.group.Go(func() error { return fn(r.ctx) })
}

// Expired reports whether the exchange timeout fired.
func (r *runtime) Expired() bool {
	return r.deadline.Err() == context.DeadlineExceeded
}

// Stop cancels outstanding work and waits up to grace for it. When tasks
// ignore cancellation it returns errTeardownTimeout; Drained closes once they
// finally return. Safe to call more than once.
func (r *runtime) Stop(grace time.Duration) error {
	r.stopOnce.Do(func() {
		r.cancel()
		go func() {
			r.waitErr = r.group.Wait()
			close(r.drained)
		}()
	})

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-r.drained:
		return r.waitErr
	case <-timer.C:
		return errTeardownTimeout
	}
}

// Drained is closed when every task of the runtime has returned.
func (r *runtime) Drained() <-chan struct{} {
	return r.drained
}
