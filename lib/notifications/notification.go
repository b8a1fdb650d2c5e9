package notifications

import (
	"backend/lib/services"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Common errors
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDeliveryFailed   = errors.New("notification delivery failed")
	ErrConnectionClosed = errors.New("connection closed")
)

// NotificationType represents different types of notifications
type NotificationType string

const (
	TypeBattleCreated NotificationType = "battle.created"
	TypeBattleStarted NotificationType = "battle.started"
	TypeBattleEnded   NotificationType = "battle.ended"
	TypeAlert         NotificationType = "alert"
	TypePing          NotificationType = "ping"
)

type NotificationPriority int

const (
	PriorityLow    NotificationPriority = 1
	PriorityMedium NotificationPriority = 2
	PriorityHigh   NotificationPriority = 3
)

// Notification represents a single notification message addressed to a user.
type Notification struct {
	ID        string               `json:"id"`
	Type      NotificationType     `json:"type"`
	Username  string               `json:"username,omitempty"`
	Content   fiber.Map            `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
	Priority  NotificationPriority `json:"priority"`
}

func (n *Notification) Reset() {
	n.ID = ""
	n.Type = ""
	n.Username = ""
	n.Content = nil
	n.CreatedAt = time.Time{}
	n.Priority = 0
}

// Config holds the configuration for the notification system
type Config struct {
	WorkerCount     int
	WorkerQueueSize int
	RetryAttempts   int
	RetryDelay      time.Duration
	ShutdownTimeout time.Duration
	InitialPoolSize int
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be greater than 0", ErrInvalidConfig)
	}
	return nil
}

// clientRegistry manages active SSE connections, keyed by username.
type clientRegistry struct {
	mu         sync.RWMutex
	clients    map[string]chan *Notification
	subConns   map[string]*redis.PubSub
	closeChans map[string]chan struct{}
}

// NotificationService delivers point-to-point messages to named users over
// Redis pub/sub, buffering for users without an active connection.
type NotificationService struct {
	config   *Config
	jobs     chan *Notification
	shutdown chan struct{}
	wg       sync.WaitGroup
	registry *clientRegistry
	pool     sync.Pool // Pool for notification objects
	bufPool  sync.Pool // Pool for JSON encoding buffers
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg *Config) (*NotificationService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &NotificationService{
		config:   cfg,
		jobs:     make(chan *Notification, cfg.WorkerQueueSize),
		shutdown: make(chan struct{}),
		registry: &clientRegistry{
			clients:    make(map[string]chan *Notification),
			subConns:   make(map[string]*redis.PubSub),
			closeChans: make(map[string]chan struct{}),
		},
	}
	s.pool.New = func() interface{} {
		return &Notification{}
	}
	s.bufPool.New = func() interface{} {
		b := make([]byte, 0, 1024)
		return &b
	}

	// Pre-warm the pool
	if cfg.InitialPoolSize > 0 {
		for i := 0; i < cfg.InitialPoolSize; i++ {
			s.pool.Put(&Notification{})
		}
	}

	return s, nil
}

// GetNotification gets a notification from the pool
func (s *NotificationService) GetNotification() *Notification {
	return s.pool.Get().(*Notification)
}

// PutNotification returns a notification to the pool
func (s *NotificationService) PutNotification(n *Notification) {
	n.Reset()
	s.pool.Put(n)
}

// Send queues a notification for processing
func (s *NotificationService) Send(
	ctx context.Context,
	t NotificationType,
	priority NotificationPriority,
	username string,
	content fiber.Map,
) error {
	pooled := s.GetNotification()
	pooled.CreatedAt = time.Now()
	pooled.ID = uuid.New().String()
	pooled.Username = username
	pooled.Type = t
	pooled.Priority = priority
	pooled.Content = content

	select {
	case s.jobs <- pooled:
		return nil
	case <-ctx.Done():
		s.PutNotification(pooled)
		return ctx.Err()
	}
}

// Start initializes the worker pool and starts processing notifications
func (s *NotificationService) Start(ctx context.Context, cache *services.Cache) error {
	slog.Info("Notifications : starting notification service")

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, cache)
	}

	return nil
}

// worker processes notifications from the job queue
func (s *NotificationService) worker(ctx context.Context, cache *services.Cache) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return

		case notification := <-s.jobs:
			if err := s.processNotification(ctx, notification, cache); err != nil {
				slog.Error("Notifications : failed to process notification",
					"error", err,
					"notification_id", notification.ID)

				if err := s.handleRetry(ctx, notification, cache); err != nil {
					slog.Error("Notifications : retry failed", "error", err)
				}
			}
			s.PutNotification(notification)
		}
	}
}

// processNotification handles the delivery of a single notification. The
// caller owns the notification and returns it to the pool.
func (s *NotificationService) processNotification(ctx context.Context, n *Notification, cache *services.Cache) error {
	if s.hasActiveConnection(ctx, n.Username, cache) {
		return s.deliverNotification(ctx, n, cache)
	}
	return s.storeNotification(ctx, n, cache)
}

// deliverNotification publishes a notification on the user's channel
func (s *NotificationService) deliverNotification(ctx context.Context, n *Notification, cache *services.Cache) error {
	channel := fmt.Sprintf("notifications:channel:user:%s", n.Username)

	bufPtr := s.bufPool.Get().(*[]byte)
	b := bytes.NewBuffer((*bufPtr)[:0])
	defer s.bufPool.Put(bufPtr)

	if err := json.NewEncoder(b).Encode(n); err != nil {
		return err
	}

	return cache.Db.Publish(ctx, channel, b.Bytes()).Err()
}

// registerClient adds a new SSE client connection
func (s *NotificationService) registerClient(ctx context.Context, username string, notifications chan *Notification, cache *services.Cache) error {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	if _, exists := s.registry.clients[username]; exists {
		return fmt.Errorf("client already registered: %s", username)
	}

	channel := fmt.Sprintf("notifications:channel:user:%s", username)
	pubsub := cache.Db.Subscribe(ctx, channel)
	closeChan := make(chan struct{})

	// Verify subscription
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to notification channel: %w", err)
	}

	s.registry.clients[username] = notifications
	s.registry.subConns[username] = pubsub
	s.registry.closeChans[username] = closeChan

	go s.relayMessages(ctx, username, pubsub.Channel(), notifications, cache)

	err := cache.Db.Set(ctx, fmt.Sprintf("notifications:is_connected:%s", username), true, 15*time.Minute).Err()
	if err != nil {
		slog.Error("Notifications : failed to set connection status", "error", err, "username", username)
	}

	slog.Info("Notifications : client registered to a notification session", "username", username)
	return nil
}

// unregisterClient removes a client connection
func (s *NotificationService) unregisterClient(ctx context.Context, username string, cache *services.Cache) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	if pubsub, exists := s.registry.subConns[username]; exists {
		if err := pubsub.Close(); err != nil {
			slog.Error("Notifications : failed to close pubsub connection",
				"error", err,
				"username", username)
		}
		delete(s.registry.subConns, username)
	}

	delete(s.registry.clients, username)
	delete(s.registry.closeChans, username)

	err := cache.Db.Del(ctx, fmt.Sprintf("notifications:is_connected:%s", username)).Err()
	if err != nil {
		slog.Error("Notifications : failed to remove connection status",
			"error", err,
			"username", username)
	}

	slog.Info("Notifications : client has been unregistered from its notification session", "username", username)
}

// relayMessages moves notifications from the user's Redis channel to the SSE
// client, falling back to the buffer when the client channel is full.
func (s *NotificationService) relayMessages(ctx context.Context, username string, redisMessages <-chan *redis.Message, notifications chan<- *Notification, cache *services.Cache) {
	for {
		select {
		case msg, ok := <-redisMessages:
			if !ok {
				return
			}
			notification := s.GetNotification()

			if err := json.Unmarshal([]byte(msg.Payload), notification); err != nil {
				slog.Error("Notifications : failed to unmarshal notification",
					"error", err,
					"username", username)
				s.PutNotification(notification)
				continue
			}

			s.registry.mu.RLock()
			_, exists := s.registry.clients[username]
			s.registry.mu.RUnlock()

			if !exists {
				s.PutNotification(notification)
				return
			}

			select {
			case notifications <- notification:
			case <-ctx.Done():
				s.PutNotification(notification)
				return
			case <-s.shutdown:
				s.PutNotification(notification)
				return
			default:
				slog.Warn("Notifications : client channel full, storing notification",
					"username", username)
				if err := s.storeNotification(ctx, notification, cache); err != nil {
					slog.Error("Notifications : failed to store notification",
						"error", err,
						"username", username)
				}
				s.PutNotification(notification)
			}

		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		}
	}
}

// deliverStoredNotifications sends previously buffered notifications
func (s *NotificationService) deliverStoredNotifications(ctx context.Context, username string, cache *services.Cache) error {
	key := fmt.Sprintf("notifications:buffer:%s", username)

	for {
		result, err := cache.Db.LPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to get stored notification: %w", err)
		}

		notification := s.GetNotification()

		if err := json.Unmarshal([]byte(result), notification); err != nil {
			s.PutNotification(notification)
			continue
		}

		s.registry.mu.RLock()
		notifications, exists := s.registry.clients[username]
		s.registry.mu.RUnlock()

		if !exists {
			s.PutNotification(notification)
			return fmt.Errorf("client not found: %s", username)
		}

		select {
		case notifications <- notification:
		case <-ctx.Done():
			s.PutNotification(notification)
			return ctx.Err()
		}
	}

	return nil
}

// Shutdown gracefully shuts down the service
func (s *NotificationService) Shutdown(ctx context.Context) error {
	slog.Info("Notifications : shutting down notification service")

	close(s.shutdown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Helper methods

func (s *NotificationService) hasActiveConnection(ctx context.Context, username string, cache *services.Cache) bool {
	count, err := cache.Db.Exists(ctx, fmt.Sprintf("notifications:is_connected:%s", username)).Result()
	if err != nil {
		return false
	}
	return count > 0
}

func (s *NotificationService) storeNotification(ctx context.Context, n *Notification, cache *services.Cache) error {
	slog.Debug("Notifications : storing notification for offline user", "username", n.Username)
	key := fmt.Sprintf("notifications:buffer:%s", n.Username)
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return cache.Db.RPush(ctx, key, data).Err()
}

func (s *NotificationService) handleRetry(ctx context.Context, n *Notification, cache *services.Cache) error {
	for i := 0; i < s.config.RetryAttempts; i++ {
		time.Sleep(s.config.RetryDelay)

		if err := s.processNotification(ctx, n, cache); err == nil {
			return nil
		}
	}

	return ErrDeliveryFailed
}
