package repository

import (
	"context"
	"time"

	"telegram-channel-autopilot/internal/domain/model"
)

type BotRepository interface {
	// Save inserts a new bot and assigns its ID.
	Save(ctx context.Context, tx Tx, b *model.Bot) error
	Update(ctx context.Context, tx Tx, b *model.Bot) error
	Delete(ctx context.Context, tx Tx, id int64) error

	FindByID(ctx context.Context, tx Tx, id int64) (*model.Bot, error)
	FindAll(ctx context.Context, tx Tx) ([]*model.Bot, error)
	// FindEligible returns bots with enabled AND verified set; only these
	// are considered by the automatic dispatch tick.
	FindEligible(ctx context.Context, tx Tx) ([]*model.Bot, error)

	// MarkVerified stores the resolved channel identity and flips the
	// verified flag. Only the verification action calls this.
	MarkVerified(ctx context.Context, tx Tx, id int64, channelID int64, channelTitle string) error
	// UpdateLastPost advances last_post_at; called on successful posts only.
	UpdateLastPost(ctx context.Context, tx Tx, id int64, at time.Time) error
}
