package service

//go:generate mockgen -destination=../handler/mocks/mock_service.go -package=mocks slackclone/internal/chat/service ChannelService,MessageService,ReactionService
