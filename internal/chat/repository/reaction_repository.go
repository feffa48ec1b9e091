package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"slackclone/internal/common"
	"slackclone/internal/dbsql"
)

type ReactionRepository interface {
	// Create inserts the reaction. A second reaction with the same
	// (message, user, emoji) fails with common.ErrConflict.
	Create(ctx context.Context, reaction *dbsql.Reaction) error
}

type reactionRepo struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepo{db: db}
}

func (r *reactionRepo) Create(ctx context.Context, reaction *dbsql.Reaction) error {
	err := r.db.WithContext(ctx).Create(reaction).Error
	if err == nil {
		return nil
	}
	if dbsql.IsDuplicateKey(err) {
		return fmt.Errorf("reaction %q by %s on message %d: %w",
			reaction.Emoji, reaction.UserID, reaction.MessageID, common.ErrConflict)
	}
	return fmt.Errorf("failed to create reaction: %w", err)
}
