package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"slackclone/internal/realtime"
)

const subscriptionBuffer = 64

// Subscription streams the events of one topic. Close it with defer; the
// events channel is closed once the stream ends for any reason.
type Subscription struct {
	Topic  string
	conn   *websocket.Conn
	events chan realtime.Event
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe opens a WebSocket stream for topic. Events published before it
// returns are not delivered and nothing is replayed.
func (c *Client) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"topic": {topic}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe to %s: %w (status %d)", topic, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &Subscription{
		Topic:  topic,
		conn:   conn,
		events: make(chan realtime.Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	go sub.read()
	return sub, nil
}

// SubscribeChannel subscribes to a chat channel's topic.
func (c *Client) SubscribeChannel(ctx context.Context, channelID uint) (*Subscription, error) {
	return c.Subscribe(ctx, realtime.ChannelTopic(channelID))
}

func (s *Subscription) read() {
	defer close(s.events)
	for {
		var ev realtime.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				s.setErr(err)
			}
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Subscription) Events() <-chan realtime.Event {
	return s.events
}

// Err reports why the stream ended, or nil while it is open or after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = s.conn.Close()
	})
	return err
}
