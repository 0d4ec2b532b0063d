package db

import (
	"context"
	"time"
)

type Client interface {
	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error

	ListBlacklistWords(ctx context.Context) ([]string, error)
	AddBlacklistWord(ctx context.Context, word string, addedBy int64) error
	RemoveBlacklistWord(ctx context.Context, word string) (bool, error)

	ListAllowedChats(ctx context.Context) ([]AllowedChat, error)
	AllowChat(ctx context.Context, chat AllowedChat) error
	RevokeChat(ctx context.Context, chatID int64) (bool, error)

	ListCommands(ctx context.Context) ([]CustomCommand, error)
	UpsertCommand(ctx context.Context, cmd CustomCommand) error
	RemoveCommand(ctx context.Context, trigger string) (bool, error)

	RecordIncident(ctx context.Context, incident *Incident) error
	RecentIncidents(ctx context.Context, chatID int64, limit int) ([]Incident, error)
	PruneIncidents(ctx context.Context, before time.Time) (int64, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error

	Close() error
}
