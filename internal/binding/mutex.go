package binding

import "sync"

// Unlock releases a Mutex acquired through Lock or LockAsync.
// Calling it more than once has no further effect.
type Unlock func()

// Mutex is a single-holder lock whose waiters are served strictly in
// arrival order.
//
// Releasing a held Mutex with waiters queued hands ownership to the oldest
// waiter on a separate goroutine, so the releasing caller is never
// re-entered from inside its own Unlock. Ownership never becomes free in
// between, which keeps the FIFO order intact.
//
// There is no timeout and no cancellation. A holder that never unlocks
// blocks every later locker for good.
type Mutex struct {
	mu     sync.Mutex
	locked bool
	queue  []chan Unlock
}

// LockAsync requests the lock and returns a channel that yields the Unlock
// once the caller owns it. The channel is buffered, so the hand-off never
// blocks if the caller reads late.
func (m *Mutex) LockAsync() <-chan Unlock {
	ch := make(chan Unlock, 1)

	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		ch <- m.newUnlock()
		return ch
	}
	m.queue = append(m.queue, ch)
	m.mu.Unlock()

	return ch
}

// Lock blocks until the caller owns the lock.
func (m *Mutex) Lock() Unlock {
	return <-m.LockAsync()
}

// Locked reports whether the lock is currently held (or being handed over).
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Waiting returns the number of queued lockers.
func (m *Mutex) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mutex) newUnlock() Unlock {
	var once sync.Once
	return func() {
		once.Do(m.release)
	}
}

// release passes ownership to the next waiter or frees the lock.
func (m *Mutex) release() {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.locked = false
		m.mu.Unlock()
		return
	}
	next := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	m.mu.Unlock()

	unlock := m.newUnlock()
	go func() {
		next <- unlock
	}()
}
