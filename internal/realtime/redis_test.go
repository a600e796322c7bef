package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisRelay_DefaultsChannel(t *testing.T) {
	t.Parallel()
	r := NewRedisRelay(unreachableRedis(), "", NewHub(), zaptest.NewLogger(t))
	require.Equal(t, DefaultChannel, r.channel)
}

func TestRedisRelay_ErrorsWhenUnreachable(t *testing.T) {
	t.Parallel()
	c := unreachableRedis()
	defer c.Close()
	r := NewRedisRelay(c, "ch", NewHub(), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, r.Publish(ctx, "doc"))
	require.Error(t, r.Run(ctx))
}

func TestPGRelay_PublishIsNoop(t *testing.T) {
	t.Parallel()
	r := NewPGRelay("postgres://127.0.0.1:1/none?sslmode=disable", "", NewHub(), zap.NewNop())
	defer r.listener.Close()
	require.NoError(t, r.Publish(context.Background(), "doc"))
	require.Equal(t, DefaultChannel, r.channel)
}

type fakeListener struct {
	ch       chan *pq.Notification
	listened string
	closed   bool
}

func (f *fakeListener) Listen(channel string) error                  { f.listened = channel; return nil }
func (f *fakeListener) NotificationChannel() <-chan *pq.Notification { return f.ch }
func (f *fakeListener) Ping() error                                  { return nil }
func (f *fakeListener) Close() error                                 { f.closed = true; return nil }

func TestPGRelay_RelaysNotifications(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	fl := &fakeListener{ch: make(chan *pq.Notification)}
	r := &PGRelay{listener: fl, channel: "expense_changes", hub: hub, log: zaptest.NewLogger(t)}

	doc1, cancel1 := hub.Subscribe("doc1")
	defer cancel1()
	doc2, cancel2 := hub.Subscribe("doc2")
	defer cancel2()

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	fl.ch <- &pq.Notification{Channel: "expense_changes", Extra: "doc1"}
	require.True(t, received(doc1))
	require.False(t, received(doc2))

	// nil marks a reconnect
	fl.ch <- nil
	require.True(t, received(doc1))
	require.True(t, received(doc2))

	close(fl.ch)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop when the listener closed")
	}
	require.Equal(t, "expense_changes", fl.listened)
	require.True(t, fl.closed)
}

func TestPGRelay_StopsOnContext(t *testing.T) {
	t.Parallel()
	fl := &fakeListener{ch: make(chan *pq.Notification)}
	r := &PGRelay{listener: fl, channel: DefaultChannel, hub: NewHub(), log: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	require.Equal(t, DefaultChannel, fl.listened)
	require.True(t, fl.closed)
}
