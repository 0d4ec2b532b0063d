package db

import (
	"time"
)

type (
	// Settings is the per-chat moderation configuration row.
	Settings struct {
		ID            int64  `db:"id"`
		Enabled       bool   `db:"enabled"`
		Language      string `db:"language"`
		WarningsLimit int    `db:"warnings_limit"`
	}

	// AllowedChat marks a chat as authorized for moderation.
	AllowedChat struct {
		ID        int64     `db:"id"`
		Title     string    `db:"title"`
		AddedBy   int64     `db:"added_by"`
		CreatedAt time.Time `db:"created_at"`
	}

	BlacklistWord struct {
		Word      string    `db:"word"`
		AddedBy   int64     `db:"added_by"`
		CreatedAt time.Time `db:"created_at"`
	}

	// CustomCommand is an operator-defined canned reply, keyed by the
	// command trigger without the leading slash.
	CustomCommand struct {
		Trigger   string    `db:"trigger"`
		Response  string    `db:"response"`
		CreatedBy int64     `db:"created_by"`
		CreatedAt time.Time `db:"created_at"`
	}

	// Incident is one enforcement outcome, journaled for audit.
	Incident struct {
		ID        string    `db:"id"`
		ChatID    int64     `db:"chat_id"`
		UserID    int64     `db:"user_id"`
		MessageID int       `db:"message_id"`
		Rule      string    `db:"rule"`
		Reason    string    `db:"reason"`
		Action    string    `db:"action"`
		Warnings  int       `db:"warnings"`
		CreatedAt time.Time `db:"created_at"`
	}
)

const (
	IncidentActionDeleted = "deleted"
	IncidentActionWarned  = "warned"
	IncidentActionBanned  = "banned"
	IncidentActionFlood   = "flood_deleted"
)
