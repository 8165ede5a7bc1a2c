package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultHistorySize is the notification history capacity.
const DefaultHistorySize = 50

// Push topics delivered to subscribers.
const (
	TopicNotification = "notification"
	TopicLaunched     = "session:launched"
	TopicKilled       = "session:killed"
	TopicStatus       = "session:status"
	TopicOutput       = "session:output"
)

// NotificationType tags a user-facing notification.
type NotificationType string

const (
	TypeLaunched  NotificationType = "launched"
	TypeAttention NotificationType = "attention"
	TypeError     NotificationType = "error"
	TypeCompleted NotificationType = "completed"
)

// Notification is one user-facing occurrence kept in the bounded history.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	SessionID   string           `json:"sessionId"`
	ProjectName string           `json:"projectName"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Icon        string           `json:"icon"`
	Timestamp   time.Time        `json:"timestamp"`
	Read        bool             `json:"read"`
}

// Message is a pushed event. Notifications and session updates share it.
type Message struct {
	Topic     string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"ts"`
}

// StatusUpdate is the payload of TopicStatus.
type StatusUpdate struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	ProjectName string    `json:"projectName"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutputUpdate is the payload of TopicOutput.
type OutputUpdate struct {
	ID          string    `json:"id"`
	Output      string    `json:"output"`
	ProjectName string    `json:"projectName"`
	Timestamp   time.Time `json:"timestamp"`
}

// Killed is the payload of TopicKilled.
type Killed struct {
	ID string `json:"id"`
}

// Hub keeps the newest-first notification history and fans pushed messages
// out to subscribers. Delivery is best effort: a subscriber whose buffer is
// full misses the message and can re-pull state over the request surface.
type Hub struct {
	mu       sync.RWMutex
	capacity int
	history  []Notification
	subs     map[*Subscription]struct{}

	now    func() time.Time
	logger *log.Logger
}

// Subscription receives pushed messages until Close is called.
type Subscription struct {
	C <-chan Message

	ch   chan Message
	hub  *Hub
	once sync.Once
}

// NewHub creates a hub holding at most capacity notifications. A
// non-positive capacity uses DefaultHistorySize.
func NewHub(capacity int, logger *log.Logger) *Hub {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
		now:      time.Now,
		logger:   logger,
	}
}

// Send stamps n with an id, timestamp and read=false, stores it at the head
// of the history, and broadcasts it. The stored copy is returned.
func (h *Hub) Send(n Notification) Notification {
	ts := h.now().UTC()
	n.ID = fmt.Sprintf("notif-%d-%s", ts.UnixMilli(), uuid.NewString()[:6])
	n.Timestamp = ts
	n.Read = false
	if n.Icon == "" {
		n.Icon = string(n.Type)
	}

	h.mu.Lock()
	h.history = append([]Notification{n}, h.history...)
	if len(h.history) > h.capacity {
		h.history = h.history[:h.capacity]
	}
	h.mu.Unlock()

	h.Broadcast(TopicNotification, n)
	return n
}

// History returns a copy of the notifications, newest first.
func (h *Hub) History() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Notification, len(h.history))
	copy(out, h.history)
	return out
}

// MarkRead flags one notification as read. It reports whether the id was
// found.
func (h *Hub) MarkRead(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.history {
		if h.history[i].ID == id {
			h.history[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every notification as read.
func (h *Hub) MarkAllRead() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.history {
		h.history[i].Read = true
	}
}

// UnreadCount returns the number of unread notifications.
func (h *Hub) UnreadCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, e := range h.history {
		if !e.Read {
			n++
		}
	}
	return n
}

// Broadcast pushes a message to every subscriber without storing it.
func (h *Hub) Broadcast(topic string, payload any) {
	msg := Message{Topic: topic, Data: payload, Timestamp: h.now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- msg:
		default:
			h.logger.Debug("subscriber buffer full, dropping message", "topic", topic)
		}
	}
}

// Subscribe registers a subscriber with the given channel buffer.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Message, buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}
