package battles

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNilWorkerPool = errors.New("worker pool cannot be nil")
	ErrNilRedis      = errors.New("redis client cannot be nil")
)

var (
	ReadyChannelPattern  = "battle:ready:*"
	SubmitChannelPattern = "battle:submit:*"
)

type InboundKind string

const (
	InboundReady  InboundKind = "ready"
	InboundSubmit InboundKind = "submit"
)

// InboundMessage is one decoded transport message addressed to a battle. The
// sender identity comes from the transport's authenticated principal.
type InboundMessage struct {
	Kind     InboundKind `json:"-"`
	BattleID string      `json:"-"`
	Username string      `json:"username"`
	Text     string      `json:"text,omitempty"`
}

// BattleSubscriber listens on the battle transport channels and feeds decoded
// messages into the worker pool.
type BattleSubscriber struct {
	worker_pool *WorkerPool
	pubsub      *redis.PubSub
	mu          sync.Mutex
	is_active   bool
}

// NewBattleSubscriber creates a new subscriber connected to Redis
func NewBattleSubscriber(worker_pool *WorkerPool) (*BattleSubscriber, error) {
	if worker_pool == nil {
		return nil, ErrNilWorkerPool
	}

	return &BattleSubscriber{
		worker_pool: worker_pool,
		is_active:   false,
	}, nil
}

// Subscribe starts listening for readiness signals and submissions
func (s *BattleSubscriber) Subscribe(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return ErrNilRedis
	}

	s.mu.Lock()
	if s.is_active {
		s.mu.Unlock()
		return errors.New("subscriber is already active")
	}

	slog.Debug("Battles : subscribing to battle channels",
		"patterns", []string{ReadyChannelPattern, SubmitChannelPattern})
	s.pubsub = client.PSubscribe(ctx, ReadyChannelPattern, SubmitChannelPattern)
	s.is_active = true
	s.mu.Unlock()

	go func() {
		ch := s.pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					slog.Info("Battles : pubsub channel closed")
					return
				}

				if err := s.processMessage(msg.Channel, msg.Payload); err != nil {
					slog.Error("Battles : failed to process transport message",
						"error", err,
						"channel", msg.Channel)
					continue
				}

			case <-ctx.Done():
				slog.Info("Battles : context cancelled, stopping subscriber")
				s.UnSubscribe(context.Background())
				return
			}
		}
	}()

	return nil
}

// UnSubscribe stops listening for messages
func (s *BattleSubscriber) UnSubscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.is_active {
		return nil
	}

	slog.Debug("Battles : unsubscribing from battle channels")
	if err := s.pubsub.PUnsubscribe(ctx, ReadyChannelPattern, SubmitChannelPattern); err != nil {
		return err
	}

	if err := s.pubsub.Close(); err != nil {
		return err
	}

	s.is_active = false
	return nil
}

func (s *BattleSubscriber) processMessage(channel string, payload string) error {
	if payload == "" {
		return errors.New("empty message received")
	}

	var message InboundMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(channel, "battle:ready:"):
		message.Kind = InboundReady
		message.BattleID = strings.TrimPrefix(channel, "battle:ready:")
	case strings.HasPrefix(channel, "battle:submit:"):
		message.Kind = InboundSubmit
		message.BattleID = strings.TrimPrefix(channel, "battle:submit:")
	default:
		return errors.New("unexpected channel " + channel)
	}

	if message.Username == "" {
		return errors.New("message without a sender principal")
	}

	return s.worker_pool.Submit(&message)
}
