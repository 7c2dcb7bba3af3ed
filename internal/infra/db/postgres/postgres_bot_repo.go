package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

var _ repository.BotRepository = (*PostgresBotRepo)(nil)

type PostgresBotRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresBotRepo(pool *pgxpool.Pool) *PostgresBotRepo {
	return &PostgresBotRepo{pool: pool}
}

const botColumns = `
id, name, token, webhook_secret, channel_input, channel_id, channel_title,
verified, enabled, prompt, api_key_override, model_override,
COALESCE(schedule, '[]'), last_post_at, created_at, updated_at`

func (r *PostgresBotRepo) Save(ctx context.Context, tx repository.Tx, b *model.Bot) error {
	const q = `
INSERT INTO bots (
  name, token, webhook_secret, channel_input, channel_id, channel_title,
  verified, enabled, prompt, api_key_override, model_override,
  schedule, last_post_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q,
		b.Name, b.Token, b.WebhookSecret, b.ChannelInput, b.ChannelID, b.ChannelTitle,
		b.Verified, b.Enabled, b.Prompt, b.APIKeyOverride, b.ModelOverride,
		b.Schedule.JSON(), b.LastPostAt, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&b.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token already in use: %w", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres 23505, raised by
// the UNIQUE constraint on the bots token column.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresBotRepo) Update(ctx context.Context, tx repository.Tx, b *model.Bot) error {
	const q = `
UPDATE bots SET
  name=$2, token=$3, channel_input=$4, channel_id=$5, channel_title=$6,
  verified=$7, enabled=$8, prompt=$9, api_key_override=$10, model_override=$11,
  schedule=$12, updated_at=now()
WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		b.ID, b.Name, b.Token, b.ChannelInput, b.ChannelID, b.ChannelTitle,
		b.Verified, b.Enabled, b.Prompt, b.APIKeyOverride, b.ModelOverride,
		b.Schedule.JSON())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token already in use: %w", domain.ErrInvalidArgument)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresBotRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM bots WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresBotRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Bot, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+botColumns+` FROM bots WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanBot(row)
}

func (r *PostgresBotRepo) FindAll(ctx context.Context, tx repository.Tx) ([]*model.Bot, error) {
	rows, err := pickRows(ctx, r.pool, tx, `SELECT `+botColumns+` FROM bots ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBots(rows)
}

func (r *PostgresBotRepo) FindEligible(ctx context.Context, tx repository.Tx) ([]*model.Bot, error) {
	const q = `SELECT ` + botColumns + ` FROM bots WHERE enabled AND verified ORDER BY id;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBots(rows)
}

func (r *PostgresBotRepo) MarkVerified(ctx context.Context, tx repository.Tx, id int64, channelID int64, channelTitle string) error {
	const q = `
UPDATE bots SET channel_id=$2, channel_title=$3, verified=true, updated_at=now()
WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, channelID, channelTitle)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresBotRepo) UpdateLastPost(ctx context.Context, tx repository.Tx, id int64, at time.Time) error {
	const q = `UPDATE bots SET last_post_at=$2, updated_at=now() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBot(row pgx.Row) (*model.Bot, error) {
	var (
		b           model.Bot
		rawSchedule []byte
	)
	err := row.Scan(&b.ID, &b.Name, &b.Token, &b.WebhookSecret, &b.ChannelInput,
		&b.ChannelID, &b.ChannelTitle, &b.Verified, &b.Enabled, &b.Prompt,
		&b.APIKeyOverride, &b.ModelOverride, &rawSchedule, &b.LastPostAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	sched, err := model.ParseSchedule(string(rawSchedule))
	if err != nil {
		return nil, fmt.Errorf("bot %d: stored schedule invalid: %w", b.ID, err)
	}
	b.Schedule = sched
	return &b, nil
}

func scanBots(rows pgx.Rows) ([]*model.Bot, error) {
	var out []*model.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
