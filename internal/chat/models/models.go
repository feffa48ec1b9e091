package models

import (
	"time"

	"slackclone/internal/dbsql"
)

// Channel, Message and Reaction are the JSON shapes served by the API and
// carried in realtime events.

type Channel struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Reaction struct {
	ID        uint      `json:"id"`
	MessageID uint      `json:"messageId"`
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID         uint       `json:"id"`
	Content    string     `json:"content"`
	ChannelID  uint       `json:"channelId"`
	UserID     string     `json:"userId"`
	Username   string     `json:"username"`
	UserAvatar *string    `json:"userAvatar"`
	Timestamp  time.Time  `json:"timestamp"`
	Reactions  []Reaction `json:"reactions"`
}

func ChannelFromRow(row dbsql.Channel) Channel {
	return Channel{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
}

func ReactionFromRow(row dbsql.Reaction) Reaction {
	return Reaction{
		ID:        row.ID,
		MessageID: row.MessageID,
		UserID:    row.UserID,
		Emoji:     row.Emoji,
		CreatedAt: row.CreatedAt,
	}
}

// MessageFromRow converts a message and whatever reactions are loaded on it.
// The result always has a non-nil Reactions slice.
func MessageFromRow(row dbsql.Message) Message {
	reactions := make([]Reaction, 0, len(row.Reactions))
	for _, r := range row.Reactions {
		reactions = append(reactions, ReactionFromRow(r))
	}
	return Message{
		ID:         row.ID,
		Content:    row.Content,
		ChannelID:  row.ChannelID,
		UserID:     row.UserID,
		Username:   row.Username,
		UserAvatar: row.UserAvatar,
		Timestamp:  row.CreatedAt,
		Reactions:  reactions,
	}
}
