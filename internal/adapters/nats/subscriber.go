package natsadapter

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/archmap/internal/core/ports"
)

// SessionEvent is one event of a followed map session. Exactly one of
// Viewport and MapClick is set.
type SessionEvent struct {
	Viewport *ports.ViewportEvent `json:"viewport,omitempty"`
	MapClick *ports.MapClickEvent `json:"map_click,omitempty"`
}

// Subscriber follows the events of individual map sessions over core NATS
// subscriptions. Followers only care about live events, so nothing is acked.
type Subscriber struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing conn.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// FollowSession delivers every viewport and map-click event of sessionID to
// handler until the returned func is called. Malformed messages are dropped.
func (s *Subscriber) FollowSession(sessionID string, handler func(SessionEvent)) (func(), error) {
	viewport, err := s.conn.Subscribe(SubjectViewport+sessionID, func(msg *nats.Msg) {
		var ev ports.ViewportEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		handler(SessionEvent{Viewport: &ev})
	})
	if err != nil {
		return nil, err
	}
	click, err := s.conn.Subscribe(SubjectMapClick+sessionID, func(msg *nats.Msg) {
		var ev ports.MapClickEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		handler(SessionEvent{MapClick: &ev})
	})
	if err != nil {
		_ = viewport.Unsubscribe()
		return nil, err
	}

	s.mu.Lock()
	live := s.subs[:0]
	for _, sub := range s.subs {
		if sub.IsValid() {
			live = append(live, sub)
		}
	}
	s.subs = append(live, viewport, click)
	s.mu.Unlock()

	return func() {
		_ = viewport.Unsubscribe()
		_ = click.Unsubscribe()
	}, nil
}

// Close unsubscribes everything still open.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.IsValid() {
			_ = sub.Unsubscribe()
		}
	}
	s.subs = nil
}
