package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type notificationEventPayload struct {
	Source       string            `json:"source"`
	Notification flow.Notification `json:"notification"`
}

type heartbeatPayload struct {
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

func (h *httpHandler) handleNotifications(c *gin.Context) {
	controller, err := h.registry.For(c.GetString(accountContextKey))
	if err != nil {
		h.respondError(c, "notifications", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": controller.Notifications()})
}

func (h *httpHandler) handleDismissNotification(c *gin.Context) {
	controller, err := h.registry.For(c.GetString(accountContextKey))
	if err != nil {
		h.respondError(c, "notifications", err, nil)
		return
	}
	if !controller.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleNotificationStream relays the account's notifications as server-sent events
// until the client disconnects.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	account := c.GetString(accountContextKey)
	if account == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.dispatcher.Subscribe(ctx, account)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	h.logger.Debug("notification stream opened", zap.String("account", account))
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(NotificationEvent, notificationEventPayload{
				Source:       notificationStreamSource,
				Notification: message.Notification,
			})
			return true
		case now := <-heartbeat.C:
			c.SSEvent(notificationHeartbeat, heartbeatPayload{
				Source:    notificationStreamSource,
				Timestamp: now.UTC().Unix(),
			})
			return true
		}
	})
	h.logger.Debug("notification stream closed", zap.String("account", account))
}
