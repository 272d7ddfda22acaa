package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLock(t *testing.T) {
	l := newKeyedLock()
	ctx := context.Background()

	release, err := l.acquire(ctx, "a", false)
	require.NoError(t, err)

	_, err = l.acquire(ctx, "a", false)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	other, err := l.acquire(ctx, "b", false)
	require.NoError(t, err, "different keys do not contend")
	other()

	got := make(chan struct{})
	go func() {
		r, err := l.acquire(ctx, "a", true)
		if err == nil {
			r()
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("waiter acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	<-got
}

func TestKeyedLockWaitHonorsContext(t *testing.T) {
	l := newKeyedLock()
	release, err := l.acquire(context.Background(), "a", false)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, "a", true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
