package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventNewMessage  = "new-message"
	EventNewReaction = "new-reaction"
)

// ChannelTopic is the pub/sub topic every chat channel publishes on.
func ChannelTopic(channelID uint) string {
	return fmt.Sprintf("channel-%d", channelID)
}

// Broadcaster publishes one event to everyone subscribed to topic. Delivery
// is at most once; an error means the event may not have reached anyone.
type Broadcaster interface {
	Publish(ctx context.Context, topic, event string, payload interface{}) error
}

// Event is the envelope carried by every transport other than Pusher, which
// takes topic and event name out of band.
type Event struct {
	Topic     string          `json:"topic"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(topic, event string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return Event{Topic: topic, Event: event, Data: data, Timestamp: time.Now().UTC()}, nil
}

// Sink is one delivery backend registered with a Fanout.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Noop discards every event. Used when no realtime driver is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, interface{}) error { return nil }
