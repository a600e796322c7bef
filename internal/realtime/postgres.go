package realtime

import (
	"context"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// notifyListener is the part of *pq.Listener the relay drives.
type notifyListener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// PGRelay listens for NOTIFY events emitted by the expenses table trigger.
// Writes reach it through the database, so Publish is a no-op.
type PGRelay struct {
	listener notifyListener
	channel  string
	hub      *Hub
	log      *zap.Logger
}

// NewPGRelay constructs a relay on dsn.
func NewPGRelay(dsn, channel string, hub *Hub, log *zap.Logger) *PGRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("pq listener", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	return &PGRelay{listener: l, channel: channel, hub: hub, log: log}
}

// Publish is a no-op: the database trigger notifies.
func (r *PGRelay) Publish(context.Context, string) error { return nil }

// Run relays notifications until ctx is done.
func (r *PGRelay) Run(ctx context.Context) error {
	defer r.listener.Close()
	if err := r.listener.Listen(r.channel); err != nil {
		return err
	}
	r.log.Info("realtime relay subscribed", zap.String("backend", "postgres"), zap.String("channel", r.channel))

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-r.listener.NotificationChannel():
			if !ok {
				return nil
			}
			if n == nil {
				// reconnected; anything sent meanwhile is lost
				r.hub.NotifyAll()
				continue
			}
			r.hub.Notify(n.Extra)
		case <-ping.C:
			go func() { _ = r.listener.Ping() }()
		}
	}
}
