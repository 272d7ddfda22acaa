package syncer

import (
	"context"
	"sync"
)

// keyedLock allows one holder per key. Waiters block until the holder
// releases or their context ends.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]chan struct{})}
}

// acquire takes key. With wait unset a busy key fails immediately with
// ErrSyncInProgress.
func (l *keyedLock) acquire(ctx context.Context, key string, wait bool) (func(), error) {
	for {
		l.mu.Lock()
		done, busy := l.held[key]
		if !busy {
			done = make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
				close(done)
			}, nil
		}
		l.mu.Unlock()

		if !wait {
			return nil, ErrSyncInProgress
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
