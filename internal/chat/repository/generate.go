package repository

//go:generate mockgen -destination=../service/mocks/mock_repository.go -package=mocks slackclone/internal/chat/repository ChannelRepository,MessageRepository,ReactionRepository
//go:generate mockgen -destination=../service/mocks/mock_broadcaster.go -package=mocks slackclone/internal/realtime Broadcaster
