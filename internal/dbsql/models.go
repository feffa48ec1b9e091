package dbsql

import "time"

// Channel is created once and never edited.
type Channel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:80;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

// Message rows are append-only. channel_id is indexed but carries no foreign
// key, so a message may reference a channel that was never created.
type Message struct {
	ID         uint      `gorm:"primaryKey"`
	ChannelID  uint      `gorm:"index;not null"`
	UserID     string    `gorm:"size:191;not null"`
	Username   string    `gorm:"size:191;not null"`
	UserAvatar *string   `gorm:"size:1024"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index;not null"`

	Reactions []Reaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// Reaction is unique per (message, user, emoji); the index is what makes
// adding a reaction idempotent.
type Reaction struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_reactions_message_user_emoji,priority:1"`
	UserID    string    `gorm:"size:191;not null;uniqueIndex:idx_reactions_message_user_emoji,priority:2"`
	Emoji     string    `gorm:"size:32;not null;uniqueIndex:idx_reactions_message_user_emoji,priority:3"`
	CreatedAt time.Time `gorm:"not null"`
}

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{&Channel{}, &Message{}, &Reaction{}}
}
