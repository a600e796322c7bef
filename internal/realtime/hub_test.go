package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func received(ch <-chan struct{}) bool {
	select {
	case _, ok := <-ch:
		return ok
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestHub_NotifyReachesOnlyThatDocument(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	require.NoError(t, h.Publish(context.Background(), "a"))
	require.True(t, received(a))
	require.False(t, received(b))
}

func TestHub_BurstsCoalesce(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch, cancel := h.Subscribe("a")
	defer cancel()

	for i := 0; i < 10; i++ {
		h.Notify("a")
	}
	require.True(t, received(ch))
	require.False(t, received(ch))
}

func TestHub_CancelIsIdempotentAndCloses(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch, cancel := h.Subscribe("a")
	require.Equal(t, 1, h.Subscribers("a"))

	cancel()
	cancel()
	require.Equal(t, 0, h.Subscribers("a"))
	_, ok := <-ch
	require.False(t, ok)

	h.Notify("a") // no panic on closed listener
}

func TestHub_NotifyAll(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a, ca := h.Subscribe("a")
	defer ca()
	b, cb := h.Subscribe("b")
	defer cb()

	h.NotifyAll()
	require.True(t, received(a))
	require.True(t, received(b))
}

func TestHub_ConcurrentSubscribeNotify(t *testing.T) {
	t.Parallel()
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancel := h.Subscribe("x")
			cancel()
		}()
		go func() {
			defer wg.Done()
			h.Notify("x")
		}()
	}
	wg.Wait()
	require.Equal(t, 0, h.Subscribers("x"))
}
