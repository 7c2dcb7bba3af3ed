package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type PostStatus string

const (
	PostStatusSuccess  PostStatus = "success"
	PostStatusError    PostStatus = "error"
	PostStatusReceived PostStatus = "received"
)

// ParsePostStatus converts the persisted string form back to the closed
// enum; unknown values are rejected at the storage edge.
func ParsePostStatus(s string) (PostStatus, bool) {
	switch PostStatus(s) {
	case PostStatusSuccess, PostStatusError, PostStatusReceived:
		return PostStatus(s), true
	}
	return "", false
}

// MessagePrefixLimit bounds the stored prefix of generated content in
// success log entries. The full content is not persisted anywhere else.
const MessagePrefixLimit = 100

// PostLogEntry is one immutable record of a dispatch attempt or an
// inbound webhook delivery. Entries are never mutated; they only vanish
// through the bot-delete cascade.
type PostLogEntry struct {
	ID                string // ULID, sorts by creation time
	BotID             int64
	Status            PostStatus
	Message           string
	TelegramMessageID *int64
	CreatedAt         time.Time
}

func NewPostLogEntry(botID int64, status PostStatus, message string, telegramMessageID *int64) *PostLogEntry {
	return &PostLogEntry{
		ID:                ulid.Make().String(),
		BotID:             botID,
		Status:            status,
		Message:           message,
		TelegramMessageID: telegramMessageID,
		CreatedAt:         time.Now(),
	}
}

// TruncateMessage clips s to MessagePrefixLimit runes.
func TruncateMessage(s string) string {
	runes := []rune(s)
	if len(runes) <= MessagePrefixLimit {
		return s
	}
	return string(runes[:MessagePrefixLimit])
}
