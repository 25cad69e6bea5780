package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
)

const (
	// NotificationEvent is the SSE event name carrying a flow notification.
	NotificationEvent        = "notification"
	notificationHeartbeat    = "heartbeat"
	defaultSubscriberBuffer  = 16
	defaultHeartbeatInterval = 25 * time.Second
	notificationStreamSource = "hive-explorer"
)

// NotificationMessage is one notification addressed to an account's live subscribers.
type NotificationMessage struct {
	Account      string
	Notification flow.Notification
}

// NotificationDispatcher fans flow notifications out to the open streams of each account.
// Slow subscribers drop messages instead of blocking the publisher.
type NotificationDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*notificationSubscriber
	nextID      int64
	bufferSize  int
}

type notificationSubscriber struct {
	id     int64
	stream chan NotificationMessage
}

// NewNotificationDispatcher returns an empty dispatcher.
func NewNotificationDispatcher() *NotificationDispatcher {
	return &NotificationDispatcher{
		subscribers: make(map[string]map[int64]*notificationSubscriber),
		bufferSize:  defaultSubscriberBuffer,
	}
}

// Subscribe registers a stream for account until ctx ends or cleanup is called.
func (d *NotificationDispatcher) Subscribe(ctx context.Context, account string) (<-chan NotificationMessage, func()) {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" {
		ch := make(chan NotificationMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &notificationSubscriber{
		id:     d.nextSequence(),
		stream: make(chan NotificationMessage, d.bufferSize),
	}
	d.registerSubscriber(account, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(account, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers notification to every open stream of account.
func (d *NotificationDispatcher) Publish(account string, notification flow.Notification) {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" || notification.ID == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[account]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*notificationSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()

	message := NotificationMessage{Account: account, Notification: notification}
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the open streams of account.
func (d *NotificationDispatcher) SubscriberCount(account string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[strings.ToLower(strings.TrimSpace(account))])
}

func (d *NotificationDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *NotificationDispatcher) registerSubscriber(account string, subscriber *notificationSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[account]; !ok {
		d.subscribers[account] = make(map[int64]*notificationSubscriber)
	}
	d.subscribers[account][subscriber.id] = subscriber
}

func (d *NotificationDispatcher) unregisterSubscriber(account string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[account]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, account)
		}
	}
	d.mu.Unlock()
}
