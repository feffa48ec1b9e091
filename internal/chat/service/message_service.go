package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slackclone/internal/chat/models"
	"slackclone/internal/chat/repository"
	"slackclone/internal/common"
	"slackclone/internal/dbsql"
	"slackclone/internal/realtime"
)

type CreateMessageInput struct {
	ChannelID  uint
	UserID     string
	Username   string
	Text       string
	UserAvatar *string
}

type MessageService interface {
	// CreateMessage stores the message and announces it on the channel's
	// topic. The channel is not required to exist.
	CreateMessage(ctx context.Context, in CreateMessageInput) (*models.Message, error)
	// ListMessages returns the channel's messages oldest first, each with its
	// reactions.
	ListMessages(ctx context.Context, channelID uint) ([]models.Message, error)
}

type messageService struct {
	repo        repository.MessageRepository
	broadcaster realtime.Broadcaster
}

func NewMessageService(r repository.MessageRepository, b realtime.Broadcaster) MessageService {
	return &messageService{repo: r, broadcaster: b}
}

func (s *messageService) CreateMessage(ctx context.Context, in CreateMessageInput) (*models.Message, error) {
	if in.ChannelID == 0 || common.Blank(in.UserID) || common.Blank(in.Username) || common.Blank(in.Text) {
		return nil, common.Invalid("Missing required fields")
	}

	var avatar *string
	if in.UserAvatar != nil && strings.TrimSpace(*in.UserAvatar) != "" {
		avatar = in.UserAvatar
	}

	row := &dbsql.Message{
		ChannelID:  in.ChannelID,
		UserID:     in.UserID,
		Username:   in.Username,
		UserAvatar: avatar,
		Content:    in.Text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	msg := models.MessageFromRow(*row)

	topic := realtime.ChannelTopic(msg.ChannelID)
	if err := s.broadcaster.Publish(ctx, topic, realtime.EventNewMessage, msg); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", common.ErrBroadcast, realtime.EventNewMessage, topic, err)
	}

	return &msg, nil
}

func (s *messageService) ListMessages(ctx context.Context, channelID uint) ([]models.Message, error) {
	if channelID == 0 {
		return nil, common.Invalid("Channel ID is required")
	}

	rows, err := s.repo.ListWithReactions(ctx, channelID)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, models.MessageFromRow(row))
	}
	return messages, nil
}
