package flow

// Notifications returns the unexpired notifications, oldest first, pruning expired ones.
func (c *Controller) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return append([]Notification(nil), c.notifications...)
}

// Dismiss removes a notification before it expires.
func (c *Controller) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, notification := range c.notifications {
		if notification.ID == id {
			c.notifications = append(c.notifications[:index], c.notifications[index+1:]...)
			return true
		}
	}
	return false
}

func (c *Controller) pushLocked(kind NotificationKind, message string) Notification {
	now := c.clock().UTC()
	notification := Notification{
		ID:        newNotificationID(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		Expiry:    now.Add(c.ttl),
	}
	c.pruneLocked()
	c.notifications = append(c.notifications, notification)
	if overflow := len(c.notifications) - maxNotifications; overflow > 0 {
		c.notifications = append([]Notification(nil), c.notifications[overflow:]...)
	}
	return notification
}

func (c *Controller) pruneLocked() {
	now := c.clock()
	kept := c.notifications[:0]
	for _, notification := range c.notifications {
		if notification.Expiry.After(now) {
			kept = append(kept, notification)
		}
	}
	c.notifications = kept
}
