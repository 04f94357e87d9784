package parallel

import (
	"context"
	"sync"
)

// Mailbox is a single-slot hand-off between one publisher and any number of
// consumers. The publisher blocks while the slot is occupied; consumers
// never block waiting for a value.
type Mailbox struct {
	mu   sync.Mutex
	cond *sync.Cond
	slot rune
	full bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish waits for the slot to be empty, then fills it with r. It returns
// ctx.Err() if ctx is done first, leaving the slot untouched.
func (m *Mailbox) Publish(ctx context.Context, r rune) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.waitEmptyLocked(ctx); err != nil {
		return err
	}
	m.slot = r
	m.full = true
	return nil
}

// Drain waits until the last published value has been taken.
func (m *Mailbox) Drain(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitEmptyLocked(ctx)
}

// TryTake empties the slot and returns its value, or reports false if the
// slot was empty.
func (m *Mailbox) TryTake() (rune, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return 0, false
	}
	r := m.slot
	m.full = false
	m.cond.Broadcast()
	return r, true
}

// Pending reports whether the slot holds a value.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

func (m *Mailbox) waitEmptyLocked(ctx context.Context) error {
	if !m.full {
		return ctx.Err()
	}
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()
	for m.full {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cond.Wait()
	}
	return ctx.Err()
}
