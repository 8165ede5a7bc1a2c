package events

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestHub_SendStampsAndStores(t *testing.T) {
	h := NewHub(10, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	got := h.Send(Notification{Type: TypeAttention, SessionID: "s1", ProjectName: "Demo", Title: "Needs Attention", Read: true})

	if !strings.HasPrefix(got.ID, fmt.Sprintf("notif-%d-", fixed.UnixMilli())) {
		t.Errorf("ID = %q, want notif-<ms>- prefix", got.ID)
	}
	if !got.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, fixed)
	}
	if got.Read {
		t.Error("sent notification must start unread")
	}
	if got.Icon != "attention" {
		t.Errorf("Icon = %q, want default from type", got.Icon)
	}

	hist := h.History()
	if len(hist) != 1 || hist[0].ID != got.ID {
		t.Fatalf("History() = %+v, want the sent notification", hist)
	}
}

func TestHub_HistoryBoundedNewestFirst(t *testing.T) {
	h := NewHub(5, nil)
	for i := 0; i < 12; i++ {
		h.Send(Notification{Type: TypeAttention, Title: fmt.Sprintf("n%d", i)})
		if n := len(h.History()); n > 5 {
			t.Fatalf("history length %d exceeds capacity after %d sends", n, i+1)
		}
	}

	hist := h.History()
	if len(hist) != 5 {
		t.Fatalf("len(History()) = %d, want 5", len(hist))
	}
	for i, n := range hist {
		want := fmt.Sprintf("n%d", 11-i)
		if n.Title != want {
			t.Errorf("History()[%d].Title = %q, want %q", i, n.Title, want)
		}
	}
}

func TestHub_DefaultCapacity(t *testing.T) {
	h := NewHub(0, nil)
	for i := 0; i < DefaultHistorySize+10; i++ {
		h.Send(Notification{Type: TypeError})
	}
	if n := len(h.History()); n != DefaultHistorySize {
		t.Errorf("len(History()) = %d, want %d", n, DefaultHistorySize)
	}
}

func TestHub_HistoryIsCopy(t *testing.T) {
	h := NewHub(5, nil)
	h.Send(Notification{Type: TypeError})
	hist := h.History()
	hist[0].Read = true
	if h.UnreadCount() != 1 {
		t.Error("mutating History() result must not affect the hub")
	}
}

func TestHub_MarkRead(t *testing.T) {
	h := NewHub(5, nil)
	a := h.Send(Notification{Type: TypeError})
	h.Send(Notification{Type: TypeError})

	if !h.MarkRead(a.ID) {
		t.Fatal("MarkRead() of known id returned false")
	}
	if h.MarkRead("notif-0-missing") {
		t.Error("MarkRead() of unknown id returned true")
	}
	if got := h.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount() = %d, want 1", got)
	}
}

func TestHub_MarkAllReadIdempotent(t *testing.T) {
	h := NewHub(5, nil)
	for i := 0; i < 3; i++ {
		h.Send(Notification{Type: TypeCompleted})
	}
	if got := h.UnreadCount(); got != 3 {
		t.Fatalf("UnreadCount() = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		h.MarkAllRead()
		if got := h.UnreadCount(); got != 0 {
			t.Fatalf("UnreadCount() after MarkAllRead #%d = %d, want 0", i+1, got)
		}
	}
}

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	h := NewHub(5, nil)
	a := h.Subscribe(4)
	b := h.Subscribe(4)
	defer a.Close()
	defer b.Close()

	h.Broadcast(TopicStatus, StatusUpdate{ID: "s1", Status: "idle"})

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case msg := <-sub.C:
			if msg.Topic != TopicStatus {
				t.Errorf("%s: Topic = %q, want %q", name, msg.Topic, TopicStatus)
			}
			if up, ok := msg.Data.(StatusUpdate); !ok || up.ID != "s1" {
				t.Errorf("%s: Data = %#v", name, msg.Data)
			}
		default:
			t.Errorf("%s: no message delivered", name)
		}
	}
	if n := len(h.History()); n != 0 {
		t.Errorf("Broadcast must not store history, got %d entries", n)
	}
}

func TestHub_SendBroadcastsNotification(t *testing.T) {
	h := NewHub(5, nil)
	sub := h.Subscribe(1)
	defer sub.Close()

	sent := h.Send(Notification{Type: TypeLaunched})
	msg := <-sub.C
	if msg.Topic != TopicNotification {
		t.Fatalf("Topic = %q, want %q", msg.Topic, TopicNotification)
	}
	if n, ok := msg.Data.(Notification); !ok || n.ID != sent.ID {
		t.Errorf("Data = %#v, want the stored notification", msg.Data)
	}
}

func TestHub_FullSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(5, nil)
	slow := h.Subscribe(1)
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Broadcast(TopicOutput, OutputUpdate{ID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full subscriber")
	}
	if len(slow.C) != 1 {
		t.Errorf("slow subscriber buffered %d messages, want 1", len(slow.C))
	}
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	h := NewHub(5, nil)
	sub := h.Subscribe(1)
	sub.Close()
	sub.Close()

	if n := h.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Close()")
	}
	h.Broadcast(TopicKilled, Killed{ID: "s1"})
}

func TestHub_ConcurrentSendAndRead(t *testing.T) {
	h := NewHub(20, nil)
	sub := h.Subscribe(1000)
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Send(Notification{Type: TypeAttention})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.History()
				_ = h.UnreadCount()
				h.MarkAllRead()
			}
		}()
	}
	wg.Wait()

	if n := len(h.History()); n != 20 {
		t.Errorf("len(History()) = %d, want 20", n)
	}
}
