package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

var _ repository.PostLogRepository = (*postLogRepo)(nil)

type postLogRepo struct {
	pool *pgxpool.Pool
}

func NewPostLogRepo(pool *pgxpool.Pool) repository.PostLogRepository {
	return &postLogRepo{pool: pool}
}

func (r *postLogRepo) Record(ctx context.Context, tx repository.Tx, e *model.PostLogEntry) error {
	const q = `
INSERT INTO post_logs (id, bot_id, status, message, telegram_message_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.BotID, string(e.Status), e.Message, e.TelegramMessageID, e.CreatedAt)
	return err
}

func (r *postLogRepo) FindRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.PostLogEntry, error) {
	const q = `
SELECT id, bot_id, status, message, telegram_message_id, created_at
  FROM post_logs ORDER BY created_at DESC, id DESC LIMIT $1;`
	rows, err := pickRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func (r *postLogRepo) FindByBot(ctx context.Context, tx repository.Tx, botID int64, limit int) ([]*model.PostLogEntry, error) {
	const q = `
SELECT id, bot_id, status, message, telegram_message_id, created_at
  FROM post_logs WHERE bot_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, botID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func (r *postLogRepo) DeleteByBot(ctx context.Context, tx repository.Tx, botID int64) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM post_logs WHERE bot_id=$1;`, botID)
	return err
}

func scanLogEntries(rows pgx.Rows) ([]*model.PostLogEntry, error) {
	var out []*model.PostLogEntry
	for rows.Next() {
		var (
			e      model.PostLogEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.BotID, &status, &e.Message, &e.TelegramMessageID, &e.CreatedAt); err != nil {
			return nil, err
		}
		st, ok := model.ParsePostStatus(status)
		if !ok {
			return nil, fmt.Errorf("post log %s: unknown status %q", e.ID, status)
		}
		e.Status = st
		out = append(out, &e)
	}
	return out, rows.Err()
}
