//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"slackclone/internal/chat/repository"
	"slackclone/internal/chat/service"
	"slackclone/internal/config"
	"slackclone/internal/dbsql"
	"slackclone/internal/metrics"
)

var chatSet = wire.NewSet(
	repository.NewChannelRepository,
	repository.NewMessageRepository,
	repository.NewReactionRepository,
	service.NewChannelService,
	service.NewMessageService,
	service.NewReactionService,
	ProvideHandler,
)

var realtimeSet = wire.NewSet(
	ProvideHub,
	ProvideRealtime,
	ProvideBroadcaster,
)

func InitializeApplication(cfg *config.Config) (*Application, func(), error) {
	wire.Build(
		dbsql.NewDatabase,
		metrics.New,
		realtimeSet,
		chatSet,
		ProvideHealth,
		ProvideMedia,
		ProvideRouter,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
