// Package worker provides the goroutine lifecycle helper used by the
// contact request event loop. Adapted from the reference corpus's
// core/worker package: a minimal "one or more goroutines, one halt
// signal" primitive with no behavior beyond that.
package worker

import "sync"

// Worker is a set of managed background goroutines sharing one halt
// signal.
type Worker struct {
	sync.WaitGroup
	initOnce sync.Once

	haltCh chan struct{}
}

// Go runs fn in a new goroutine. Multiple goroutines may be started under
// the same Worker; each is responsible for observing HaltCh and returning.
func (w *Worker) Go(fn func()) {
	w.initOnce.Do(w.init)
	w.Add(1)
	go func() {
		defer w.Done()
		fn()
	}()
}

// Halt closes HaltCh and blocks until every goroutine started with Go has
// returned. Halt is idempotent.
func (w *Worker) Halt() {
	w.initOnce.Do(w.init)
	select {
	case <-w.haltCh:
		// already halted
	default:
		close(w.haltCh)
	}
	w.Wait()
}

// HaltCh returns the channel that is closed when Halt is called.
func (w *Worker) HaltCh() <-chan struct{} {
	w.initOnce.Do(w.init)
	return w.haltCh
}

func (w *Worker) init() {
	w.haltCh = make(chan struct{})
}
