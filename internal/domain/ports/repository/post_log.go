package repository

import (
	"context"

	"telegram-channel-autopilot/internal/domain/model"
)

// -----------------------------
// Outcome Log
// -----------------------------

// PostLogRepository is append-only: there is no update or delete path.
// Entries disappear only through the bot-delete cascade.
type PostLogRepository interface {
	Record(ctx context.Context, tx Tx, e *model.PostLogEntry) error
	// FindRecent returns the newest entries across all bots (dashboard).
	FindRecent(ctx context.Context, tx Tx, limit int) ([]*model.PostLogEntry, error)
	FindByBot(ctx context.Context, tx Tx, botID int64, limit int) ([]*model.PostLogEntry, error)
	// DeleteByBot exists solely for the bot-delete cascade.
	DeleteByBot(ctx context.Context, tx Tx, botID int64) error
}
