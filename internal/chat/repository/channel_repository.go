package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"slackclone/internal/dbsql"
)

type ChannelRepository interface {
	List(ctx context.Context) ([]dbsql.Channel, error)
	Create(ctx context.Context, channel *dbsql.Channel) error
}

type channelRepo struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepo{db: db}
}

func (r *channelRepo) List(ctx context.Context) ([]dbsql.Channel, error) {
	channels := []dbsql.Channel{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

func (r *channelRepo) Create(ctx context.Context, channel *dbsql.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}
