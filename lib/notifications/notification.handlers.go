package notifications

import (
	"backend/lib/server/middleware"
	"backend/lib/services"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SSENotificationHandler streams a user's notifications over server-sent
// events until the client disconnects or the connection is closed remotely.
func (s *NotificationService) SSENotificationHandler(c *fiber.Ctx, cache *services.Cache) error {
	username, err := middleware.GetUsername(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown user",
		})
	}

	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	notifications := make(chan *Notification, 100)

	if err := s.registerClient(c.Context(), username, notifications, cache); err != nil {
		slog.Error("Notifications : failed to register client",
			"error", err,
			"username", username)
		return err
	}

	bufPtr := s.bufPool.Get().(*[]byte)
	defer s.bufPool.Put(bufPtr)

	if err := s.deliverStoredNotifications(c.Context(), username, cache); err != nil {
		slog.Error("Notifications : failed to deliver stored notifications",
			"error", err,
			"username", username)
	}

	s.registry.mu.RLock()
	closeChan := s.registry.closeChans[username]
	s.registry.mu.RUnlock()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			s.unregisterClient(context.Background(), username, cache)
			close(notifications)
		}()

		w.WriteString("data: {\"type\":\"connected\"}\n\n")
		w.Flush()

		connectionCheckTicker := time.NewTicker(5 * time.Minute)
		defer connectionCheckTicker.Stop()

		for {
			select {
			case notification, ok := <-notifications:
				if !ok {
					return
				}

				buf := bytes.NewBuffer((*bufPtr)[:0])
				notification.Username = "" // the stream is already per-user
				if err := json.NewEncoder(buf).Encode(notification); err != nil {
					slog.Error("Notifications : failed to marshal notification",
						"error", err,
						"username", username)
					continue
				}
				s.PutNotification(notification)

				w.WriteString(fmt.Sprintf("data: %s\n\n", buf.Bytes()))
				if err := w.Flush(); err != nil {
					slog.Warn("Notifications : client disconnected (flush error)",
						"error", err,
						"username", username)
					return
				}

			case <-closeChan:
				slog.Debug("Notifications : received close signal", "username", username)
				return
			case <-connectionCheckTicker.C:
				if !s.hasActiveConnection(context.Background(), username, cache) {
					slog.Debug("Notifications : connection expired", "username", username)
					return
				}
			}
		}
	})
	return nil
}

// RefreshConnectionTTL refreshes the connection TTL for a user
func (s *NotificationService) RefreshConnectionTTL(ctx context.Context, username string, cache *services.Cache) error {
	key := fmt.Sprintf("notifications:is_connected:%s", username)
	return cache.Db.Expire(ctx, key, 15*time.Minute).Err()
}

// CloseConnection forcefully closes a user's connection
func (s *NotificationService) CloseConnection(ctx context.Context, username string, cache *services.Cache) error {
	s.registry.mu.RLock()
	closeChan, exists := s.registry.closeChans[username]
	s.registry.mu.RUnlock()

	if exists {
		close(closeChan)
	}
	key := fmt.Sprintf("notifications:is_connected:%s", username)
	return cache.Db.Del(ctx, key).Err()
}
