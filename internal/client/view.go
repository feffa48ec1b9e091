package client

import (
	"context"
	"encoding/json"
	"fmt"

	"slackclone/internal/chat/models"
	"slackclone/internal/realtime"
)

// ChannelView is the client-side state of one open channel: its messages
// in arrival order, each with its reactions.
type ChannelView struct {
	ChannelID uint
	Messages  []models.Message
}

func NewChannelView(channelID uint, messages []models.Message) *ChannelView {
	v := &ChannelView{ChannelID: channelID, Messages: make([]models.Message, 0, len(messages))}
	for _, m := range messages {
		if m.Reactions == nil {
			m.Reactions = []models.Reaction{}
		}
		v.Messages = append(v.Messages, m)
	}
	return v
}

// Apply folds one realtime event into the view and reports whether it
// changed anything. Events for other channels, unknown messages and ids
// already present are ignored.
func (v *ChannelView) Apply(ev realtime.Event) (bool, error) {
	if ev.Topic != "" && ev.Topic != realtime.ChannelTopic(v.ChannelID) {
		return false, nil
	}

	switch ev.Event {
	case realtime.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return false, fmt.Errorf("bad %s payload: %w", ev.Event, err)
		}
		return v.addMessage(msg), nil
	case realtime.EventNewReaction:
		var r models.Reaction
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			return false, fmt.Errorf("bad %s payload: %w", ev.Event, err)
		}
		return v.addReaction(r), nil
	default:
		return false, nil
	}
}

func (v *ChannelView) addMessage(msg models.Message) bool {
	if msg.ChannelID != v.ChannelID || v.index(msg.ID) >= 0 {
		return false
	}
	if msg.Reactions == nil {
		msg.Reactions = []models.Reaction{}
	}
	v.Messages = append(v.Messages, msg)
	return true
}

func (v *ChannelView) addReaction(r models.Reaction) bool {
	i := v.index(r.MessageID)
	if i < 0 {
		return false
	}
	for _, existing := range v.Messages[i].Reactions {
		if existing.ID == r.ID {
			return false
		}
	}
	v.Messages[i].Reactions = append(v.Messages[i].Reactions, r)
	return true
}

func (v *ChannelView) index(messageID uint) int {
	for i := range v.Messages {
		if v.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// ReactionCount is one emoji and how many users picked it.
type ReactionCount struct {
	Emoji string
	Count int
}

// CountReactions groups a message's reactions by emoji in first-use order.
func CountReactions(msg models.Message) []ReactionCount {
	var out []ReactionCount
	pos := make(map[string]int)
	for _, r := range msg.Reactions {
		if i, ok := pos[r.Emoji]; ok {
			out[i].Count++
			continue
		}
		pos[r.Emoji] = len(out)
		out = append(out, ReactionCount{Emoji: r.Emoji, Count: 1})
	}
	return out
}

// Follow subscribes to the channel, loads its history and then calls onChange
// with the view after every event that changes it, until ctx is done or the
// stream ends. The subscription is opened before the history is fetched so
// nothing published in between is lost.
func (c *Client) Follow(ctx context.Context, channelID uint, onChange func(*ChannelView, *realtime.Event)) error {
	sub, err := c.SubscribeChannel(ctx, channelID)
	if err != nil {
		return err
	}
	defer sub.Close()

	history, err := c.ListMessages(ctx, channelID)
	if err != nil {
		return err
	}
	view := NewChannelView(channelID, history)
	onChange(view, nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return sub.Err()
			}
			changed, err := view.Apply(ev)
			if err != nil {
				return err
			}
			if changed {
				onChange(view, &ev)
			}
		}
	}
}
