package compute

import "errors"

// Event is a completion handle for an enqueued operation.
//
// Wait blocks until the operation and everything it depends on has finished
// and reports its error. Wait may be called more than once; later calls
// return the same result without blocking.
type Event interface {
	Wait() error
}

// doneEvent is an already completed operation.
type doneEvent struct {
	err error
}

func (e doneEvent) Wait() error { return e.err }

// Done returns an event that has already completed successfully.
func Done() Event { return doneEvent{} }

// Failed returns an event that has already completed with err.
func Failed(err error) Event { return doneEvent{err: err} }

// WaitAll waits for every event, skipping nil entries, and joins their errors.
func WaitAll(events ...Event) error {
	var errs []error
	for _, e := range events {
		if e == nil {
			continue
		}
		if err := e.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
