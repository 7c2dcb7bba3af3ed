package usecase

import (
	"context"

	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

// Compile-time check
var _ LogUseCase = (*logUC)(nil)

const defaultLogLimit = 50

type LogUseCase interface {
	// Recent returns the newest entries across all bots.
	Recent(ctx context.Context, limit int) ([]*model.PostLogEntry, error)
	ForBot(ctx context.Context, botID int64, limit int) ([]*model.PostLogEntry, error)
}

type logUC struct {
	logs repository.PostLogRepository
}

func NewLogUseCase(logs repository.PostLogRepository) *logUC {
	return &logUC{logs: logs}
}

func (u *logUC) Recent(ctx context.Context, limit int) ([]*model.PostLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	return u.logs.FindRecent(ctx, repository.NoTx, limit)
}

func (u *logUC) ForBot(ctx context.Context, botID int64, limit int) ([]*model.PostLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	return u.logs.FindByBot(ctx, repository.NoTx, botID, limit)
}
