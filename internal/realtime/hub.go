package realtime

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"slackclone/internal/common"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	maxClientFrame  = 512
	defaultSubQueue = 64
)

// Hub is an in-process topic broker. WebSocket clients and in-process
// callers both receive events through a Subscription.
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscription]struct{}
	queueSize int
	pongWait  time.Duration
	upgrader  websocket.Upgrader
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultSubQueue
	}
	return &Hub{
		topics:    make(map[string]map[*Subscription]struct{}),
		queueSize: queueSize,
		pongWait:  defaultPongWait,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// WithPongWait sets how long a WebSocket client may stay silent before it is
// dropped. Pings go out at nine tenths of that interval.
func (h *Hub) WithPongWait(d time.Duration) *Hub {
	if d > 0 {
		h.pongWait = d
	}
	return h
}

// Subscription receives the events of one topic until Close is called or
// the hub drops it for falling behind. Callers should defer Close.
type Subscription struct {
	Topic  string
	hub    *Hub
	events chan Event
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if subs, ok := s.hub.topics[s.Topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.topics, s.Topic)
			}
		}
		close(s.events)
	})
}

func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{Topic: topic, hub: h, events: make(chan Event, h.queueSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	return sub
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Name() string {
	return "websocket"
}

// Send hands ev to every subscriber of its topic without blocking. A
// subscriber whose queue is full is dropped.
func (h *Hub) Send(ctx context.Context, ev Event) error {
	var slow []*Subscription

	h.mu.RLock()
	for sub := range h.topics[ev.Topic] {
		select {
		case sub.events <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		log.Printf("Dropping slow subscriber on %s", sub.Topic)
		sub.Close()
	}
	return nil
}

// ServeWS upgrades the request and streams the events of ?topic= to the
// client until either side goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic == "" {
		common.WriteError(w, http.StatusBadRequest, "topic is required")
		return
	}

	// subscribed before the handshake completes, so a client whose dial
	// returned sees every later event
	sub := h.Subscribe(topic)
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The client only ever reads. Its pongs keep the read deadline moving; a
	// read error or a missed pong means it went away.
	conn.SetReadLimit(maxClientFrame)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("WebSocket ping failed on %s: %v", topic, err)
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("WebSocket write failed on %s: %v", topic, err)
				return
			}
		}
	}
}
