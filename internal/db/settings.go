package db

import (
	"errors"
)

var ErrNotFound = errors.New("not found")

const DefaultWarningsLimit = 3

func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:            chatID,
		Enabled:       true,
		Language:      "en",
		WarningsLimit: DefaultWarningsLimit,
	}
}
