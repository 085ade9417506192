package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// NATSConfig configures the NATS subject source.
type NATSConfig struct {
	URL         string
	Subject     string
	Queue       string // optional queue group
	ConnTimeout time.Duration
}

// NATSSource pulls messages from a synchronous NATS subscription.
type NATSSource struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	subject  string
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	stopOnce sync.Once
}

// NewNATSSource connects to the server and subscribes to the configured subject.
func NewNATSSource(ctx context.Context, conf NATSConfig) (*NATSSource, error) {
	if conf.Subject == "" {
		return nil, errors.New("nats subject is required")
	}
	if conf.URL == "" {
		conf.URL = nats.DefaultURL
	}
	if conf.ConnTimeout <= 0 {
		conf.ConnTimeout = 5 * time.Second
	}

	nc, err := nats.Connect(conf.URL,
		nats.Name("tailchart"),
		nats.Timeout(conf.ConnTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("source: nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("source: nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", conf.URL, err)
	}

	var sub *nats.Subscription
	if conf.Queue != "" {
		sub, err = nc.QueueSubscribeSync(conf.Subject, conf.Queue)
	} else {
		sub, err = nc.SubscribeSync(conf.Subject)
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe %q: %w", conf.Subject, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &NATSSource{
		conn:    nc,
		sub:     sub,
		subject: conf.Subject,
		ch:      make(chan model.IngestEnvelope),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	slog.Info("source: nats subscriber ready and waiting for records", "url", conf.URL, "subject", conf.Subject, "queue", conf.Queue)
	go s.pull(ctx)
	return s, nil
}

func (s *NATSSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *NATSSource) Err() error                         { return s.err }
func (s *NATSSource) Name() string                       { return "nats" }

// Stop unsubscribes and closes the connection.
func (s *NATSSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			slog.Warn("source: nats unsubscribe failed", "error", err)
		}
		s.conn.Close()
	})
}

func (s *NATSSource) pull(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)

	var seq int64
	for {
		msg, err := s.sub.NextMsgWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				slog.Info("source: nats subscription closed", "subject", s.subject)
				return
			}
			if errors.Is(err, nats.ErrSlowConsumer) {
				slog.Warn("source: nats slow consumer, messages dropped", "subject", s.subject)
				continue
			}
			s.err = fmt.Errorf("nats next message: %w", err)
			return
		}
		seq++
		env := model.IngestEnvelope{Source: "nats", Line: string(msg.Data), Topic: msg.Subject, Offset: seq}
		select {
		case s.ch <- env:
		case <-ctx.Done():
			return
		}
	}
}
