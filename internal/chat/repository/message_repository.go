package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"slackclone/internal/common"
	"slackclone/internal/dbsql"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *dbsql.Message) error
	ByID(ctx context.Context, id uint) (*dbsql.Message, error)
	// ListWithReactions returns the channel's messages oldest first, each with
	// its reactions loaded. Reactions is never nil.
	ListWithReactions(ctx context.Context, channelID uint) ([]dbsql.Message, error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, msg *dbsql.Message) error {
	if err := r.db.WithContext(ctx).Omit("Reactions").Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	if msg.Reactions == nil {
		msg.Reactions = []dbsql.Reaction{}
	}
	return nil
}

func (r *messageRepo) ByID(ctx context.Context, id uint) (*dbsql.Message, error) {
	var msg dbsql.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message %d: %w", id, err)
	}
	return &msg, nil
}

// messageReactionRow is one row of messages LEFT JOIN reactions. The reaction
// columns are NULL for a message without reactions.
type messageReactionRow struct {
	MessageID         uint
	ChannelID         uint
	UserID            string
	Username          string
	UserAvatar        *string
	Content           string
	CreatedAt         time.Time
	ReactionID        *uint
	ReactionUserID    *string
	Emoji             *string
	ReactionCreatedAt *time.Time
}

const messageReactionColumns = "messages.id AS message_id, messages.channel_id, messages.user_id, " +
	"messages.username, messages.user_avatar, messages.content, messages.created_at, " +
	"reactions.id AS reaction_id, reactions.user_id AS reaction_user_id, " +
	"reactions.emoji, reactions.created_at AS reaction_created_at"

func (r *messageRepo) ListWithReactions(ctx context.Context, channelID uint) ([]dbsql.Message, error) {
	var rows []messageReactionRow
	err := r.db.WithContext(ctx).
		Table("messages").
		Select(messageReactionColumns).
		Joins("LEFT JOIN reactions ON reactions.message_id = messages.id").
		Where("messages.channel_id = ?", channelID).
		Order("messages.created_at ASC, messages.id ASC, reactions.created_at ASC, reactions.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for channel %d: %w", channelID, err)
	}
	return groupMessageRows(rows), nil
}

// groupMessageRows folds joined rows into one message per id, keeping the
// order in which each message first appears.
func groupMessageRows(rows []messageReactionRow) []dbsql.Message {
	messages := []dbsql.Message{}
	index := make(map[uint]int)

	for _, row := range rows {
		i, seen := index[row.MessageID]
		if !seen {
			i = len(messages)
			index[row.MessageID] = i
			messages = append(messages, dbsql.Message{
				ID:         row.MessageID,
				ChannelID:  row.ChannelID,
				UserID:     row.UserID,
				Username:   row.Username,
				UserAvatar: row.UserAvatar,
				Content:    row.Content,
				CreatedAt:  row.CreatedAt,
				Reactions:  []dbsql.Reaction{},
			})
		}

		if row.ReactionID == nil {
			continue
		}
		reaction := dbsql.Reaction{ID: *row.ReactionID, MessageID: row.MessageID}
		if row.ReactionUserID != nil {
			reaction.UserID = *row.ReactionUserID
		}
		if row.Emoji != nil {
			reaction.Emoji = *row.Emoji
		}
		if row.ReactionCreatedAt != nil {
			reaction.CreatedAt = *row.ReactionCreatedAt
		}
		messages[i].Reactions = append(messages[i].Reactions, reaction)
	}

	return messages
}
