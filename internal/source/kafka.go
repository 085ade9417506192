package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/IBM/sarama"

	"github.com/tinytelemetry/tailchart/internal/model"
)

const (
	// DefaultKafkaBroker is used when no broker list is configured.
	DefaultKafkaBroker = "localhost:9092"
	// DefaultKafkaGroup is the consumer group joined when none is configured.
	DefaultKafkaGroup = "test_group"
)

// KafkaConfig configures the queue-pull source.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Group    string
	Offset   string // "earliest" (default) or "latest"
	Version  string // kafka protocol version, e.g. "2.8.0"
	ClientID string
}

// KafkaSource consumes a topic through a consumer group and forwards each
// message value as a payload. Offsets are marked only after hand-off.
type KafkaSource struct {
	topic    string
	client   sarama.Client
	group    sarama.ConsumerGroup
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	stopOnce sync.Once
}

func newSaramaConfig(conf KafkaConfig) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "tailchart"
	if conf.ClientID != "" {
		cfg.ClientID = conf.ClientID
	}
	if conf.Version != "" {
		v, err := sarama.ParseKafkaVersion(conf.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version %q: %w", conf.Version, err)
		}
		cfg.Version = v
	}
	switch strings.ToLower(strings.TrimSpace(conf.Offset)) {
	case "", "earliest", "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	case "latest", "newest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		return nil, fmt.Errorf("kafka offset %q: want earliest or latest", conf.Offset)
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Return.Errors = true
	return cfg, nil
}

// NewKafkaSource connects to the brokers, verifies the topic exists and joins
// the consumer group. An unknown topic yields an error wrapping ErrSourceNotFound.
func NewKafkaSource(ctx context.Context, conf KafkaConfig) (*KafkaSource, error) {
	if conf.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if len(conf.Brokers) == 0 {
		conf.Brokers = []string{DefaultKafkaBroker}
	}
	if conf.Group == "" {
		conf.Group = DefaultKafkaGroup
	}
	cfg, err := newSaramaConfig(conf)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(conf.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka connect %v: %w", conf.Brokers, err)
	}
	topics, err := client.Topics()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka list topics: %w", err)
	}
	if !slices.Contains(topics, conf.Topic) {
		client.Close()
		return nil, fmt.Errorf("%w: kafka topic %q", ErrSourceNotFound, conf.Topic)
	}
	group, err := sarama.NewConsumerGroupFromClient(conf.Group, client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka consumer group %q: %w", conf.Group, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &KafkaSource{
		topic:  conf.Topic,
		client: client,
		group:  group,
		// Unbuffered so a message is marked only once the pipeline took it.
		ch:     make(chan model.IngestEnvelope),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		for err := range group.Errors() {
			slog.Warn("source: kafka consumer error", "topic", conf.Topic, "error", err)
		}
	}()
	slog.Info("source: kafka consumer ready and waiting for records", "brokers", conf.Brokers, "topic", conf.Topic, "group", conf.Group)
	go s.consume(ctx)
	return s, nil
}

func (s *KafkaSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *KafkaSource) Err() error                         { return s.err }
func (s *KafkaSource) Name() string                       { return "kafka" }

// Stop leaves the consumer group and closes the broker connection.
func (s *KafkaSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		if err := s.group.Close(); err != nil {
			slog.Warn("source: kafka group close failed", "error", err)
		}
		if err := s.client.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
			slog.Warn("source: kafka client close failed", "error", err)
		}
	})
}

func (s *KafkaSource) consume(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)

	handler := &claimHandler{out: s.ch}
	for {
		// Consume returns on every rebalance; rejoin until cancelled.
		if err := s.group.Consume(ctx, []string{s.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
				return
			}
			s.err = fmt.Errorf("kafka consume %q: %w", s.topic, err)
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// claimHandler implements sarama.ConsumerGroupHandler.
type claimHandler struct {
	out chan<- model.IngestEnvelope
}

func (h *claimHandler) Setup(sess sarama.ConsumerGroupSession) error {
	slog.Debug("source: kafka session started", "member", sess.MemberID(), "generation", sess.GenerationID(), "claims", sess.Claims())
	return nil
}

func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			env := model.IngestEnvelope{
				Source:    "kafka",
				Line:      string(msg.Value),
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
			}
			select {
			case h.out <- env:
				sess.MarkMessage(msg, "")
			case <-sess.Context().Done():
				return nil
			}
		case <-sess.Context().Done():
			return nil
		}
	}
}
