package service

import (
	"context"
	"fmt"

	"slackclone/internal/chat/models"
	"slackclone/internal/chat/repository"
	"slackclone/internal/common"
	"slackclone/internal/dbsql"
)

type ChannelService interface {
	ListChannels(ctx context.Context) ([]models.Channel, error)
	CreateChannel(ctx context.Context, name string) (*models.Channel, error)
}

type channelService struct {
	repo repository.ChannelRepository
}

func NewChannelService(r repository.ChannelRepository) ChannelService {
	return &channelService{repo: r}
}

func (s *channelService) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	channels := make([]models.Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, models.ChannelFromRow(row))
	}
	return channels, nil
}

func (s *channelService) CreateChannel(ctx context.Context, name string) (*models.Channel, error) {
	name, err := common.ValidateChannelName(name)
	if err != nil {
		return nil, err
	}

	row := &dbsql.Channel{Name: name}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	channel := models.ChannelFromRow(*row)
	return &channel, nil
}

// EnsureChannels creates each named channel that does not exist yet and
// returns the ones it created.
func EnsureChannels(ctx context.Context, svc ChannelService, names ...string) ([]models.Channel, error) {
	existing, err := svc.ListChannels(ctx)
	if err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(existing))
	for _, ch := range existing {
		have[ch.Name] = true
	}

	var created []models.Channel
	for _, name := range names {
		if have[name] {
			continue
		}
		ch, err := svc.CreateChannel(ctx, name)
		if err != nil {
			return created, fmt.Errorf("failed to create channel %q: %w", name, err)
		}
		have[name] = true
		created = append(created, *ch)
	}
	return created, nil
}
