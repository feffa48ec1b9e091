package service

import (
	"context"
	"fmt"

	"slackclone/internal/chat/models"
	"slackclone/internal/chat/repository"
	"slackclone/internal/common"
	"slackclone/internal/dbsql"
	"slackclone/internal/realtime"
)

type ReactionService interface {
	// AddReaction records that userID reacted to messageID with emoji. Adding
	// the same reaction twice fails with common.ErrConflict.
	AddReaction(ctx context.Context, messageID uint, userID, emoji string) (*models.Reaction, error)
}

type reactionService struct {
	messages    repository.MessageRepository
	reactions   repository.ReactionRepository
	broadcaster realtime.Broadcaster
}

func NewReactionService(m repository.MessageRepository, r repository.ReactionRepository, b realtime.Broadcaster) ReactionService {
	return &reactionService{messages: m, reactions: r, broadcaster: b}
}

func (s *reactionService) AddReaction(ctx context.Context, messageID uint, userID, emoji string) (*models.Reaction, error) {
	if messageID == 0 || common.Blank(userID) || common.Blank(emoji) {
		return nil, common.Invalid("Missing required fields")
	}

	emoji, err := common.NormalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	row := &dbsql.Reaction{MessageID: msg.ID, UserID: userID, Emoji: emoji}
	if err := s.reactions.Create(ctx, row); err != nil {
		return nil, err
	}

	reaction := models.ReactionFromRow(*row)

	topic := realtime.ChannelTopic(msg.ChannelID)
	if err := s.broadcaster.Publish(ctx, topic, realtime.EventNewReaction, reaction); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", common.ErrBroadcast, realtime.EventNewReaction, topic, err)
	}

	return &reaction, nil
}
