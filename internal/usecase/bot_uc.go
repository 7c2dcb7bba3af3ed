package usecase

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

// Compile-time check
var _ BotUseCase = (*botUC)(nil)

// CreateBotInput carries the operator-supplied fields for a new bot.
type CreateBotInput struct {
	Name           string
	Token          string
	ChannelInput   string
	Prompt         string
	APIKeyOverride string
	ModelOverride  string
	Schedule       []string
}

// UpdateBotInput mirrors CreateBotInput plus the enabled toggle.
// Changing the channel input clears the verified flag. A nil Enabled
// keeps the bot's current state.
type UpdateBotInput struct {
	Name           string
	Token          string
	ChannelInput   string
	Prompt         string
	APIKeyOverride string
	ModelOverride  string
	Schedule       []string
	Enabled        *bool
}

type BotUseCase interface {
	Create(ctx context.Context, in CreateBotInput) (*model.Bot, error)
	Update(ctx context.Context, id int64, in UpdateBotInput) (*model.Bot, error)
	// Delete removes the bot and its log entries in one transaction.
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Bot, error)
	List(ctx context.Context) ([]*model.Bot, error)

	// VerifyChannel resolves the configured channel, checks the bot's
	// membership there and, on success, persists the resolved identity
	// and sets verified.
	VerifyChannel(ctx context.Context, id int64) (*model.Bot, error)
	// RegisterCallback points the bot's Telegram webhook at this
	// deployment's webhook endpoint.
	RegisterCallback(ctx context.Context, id int64) error
}

type botUC struct {
	bots    repository.BotRepository
	logs    repository.PostLogRepository
	tm      repository.TransactionManager
	tg      adapter.ChannelClient
	baseURL string
	log     *zerolog.Logger
}

func NewBotUseCase(
	bots repository.BotRepository,
	logs repository.PostLogRepository,
	tm repository.TransactionManager,
	tg adapter.ChannelClient,
	baseURL string,
	logger *zerolog.Logger,
) *botUC {
	compLog := logger.With().Str("component", "BotUseCase").Logger()
	return &botUC{bots: bots, logs: logs, tm: tm, tg: tg, baseURL: baseURL, log: &compLog}
}

func (u *botUC) Create(ctx context.Context, in CreateBotInput) (*model.Bot, error) {
	// Malformed schedules are rejected here, at the console boundary;
	// the dispatch engine only ever sees validated marks.
	sched, err := model.NewSchedule(in.Schedule)
	if err != nil {
		return nil, err
	}
	b, err := model.NewBot(in.Name, in.Token, in.ChannelInput, in.Prompt, sched)
	if err != nil {
		return nil, err
	}
	b.APIKeyOverride = in.APIKeyOverride
	b.ModelOverride = in.ModelOverride
	if err := u.bots.Save(ctx, repository.NoTx, b); err != nil {
		return nil, fmt.Errorf("save bot: %w", err)
	}
	u.log.Info().Int64("bot_id", b.ID).Str("bot", b.Name).Msg("bot created")
	return b, nil
}

func (u *botUC) Update(ctx context.Context, id int64, in UpdateBotInput) (*model.Bot, error) {
	sched, err := model.NewSchedule(in.Schedule)
	if err != nil {
		return nil, err
	}
	if in.Name == "" || in.Token == "" {
		return nil, domain.ErrInvalidArgument
	}
	b, err := u.bots.FindByID(ctx, repository.NoTx, id)
	if err != nil {
		return nil, err
	}
	if in.ChannelInput != b.ChannelInput {
		// Rebinding the channel invalidates the previous verification.
		b.ChannelID = nil
		b.ChannelTitle = ""
		b.Verified = false
	}
	b.Name = in.Name
	b.Token = in.Token
	b.ChannelInput = in.ChannelInput
	b.Prompt = in.Prompt
	b.APIKeyOverride = in.APIKeyOverride
	b.ModelOverride = in.ModelOverride
	b.Schedule = sched
	if in.Enabled != nil {
		b.Enabled = *in.Enabled
	}
	if err := u.bots.Update(ctx, repository.NoTx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (u *botUC) Delete(ctx context.Context, id int64) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.logs.DeleteByBot(ctx, tx, id); err != nil {
			return err
		}
		return u.bots.Delete(ctx, tx, id)
	})
}

func (u *botUC) Get(ctx context.Context, id int64) (*model.Bot, error) {
	return u.bots.FindByID(ctx, repository.NoTx, id)
}

func (u *botUC) List(ctx context.Context) ([]*model.Bot, error) {
	return u.bots.FindAll(ctx, repository.NoTx)
}

func (u *botUC) VerifyChannel(ctx context.Context, id int64) (*model.Bot, error) {
	b, err := u.bots.FindByID(ctx, repository.NoTx, id)
	if err != nil {
		return nil, err
	}

	info, err := u.tg.ResolveChannel(ctx, b.Token, b.ChannelInput)
	if err != nil {
		return nil, err
	}
	ident, err := u.tg.Identify(ctx, b.Token)
	if err != nil {
		return nil, err
	}
	status, err := u.tg.Membership(ctx, b.Token, info.ID, ident.ID)
	if err != nil {
		return nil, err
	}
	if status != adapter.MemberStatusAdministrator && status != adapter.MemberStatusMember {
		return nil, fmt.Errorf("%w (status %q)", domain.ErrBotNotMember, status)
	}

	if err := u.bots.MarkVerified(ctx, repository.NoTx, b.ID, info.ID, info.Title); err != nil {
		return nil, err
	}
	b.ChannelID = &info.ID
	b.ChannelTitle = info.Title
	b.Verified = true
	u.log.Info().Int64("bot_id", b.ID).Int64("channel_id", info.ID).Str("channel", info.Title).Msg("channel verified")
	return b, nil
}

func (u *botUC) RegisterCallback(ctx context.Context, id int64) error {
	b, err := u.bots.FindByID(ctx, repository.NoTx, id)
	if err != nil {
		return err
	}
	callbackURL := fmt.Sprintf("%s/webhook?bot_id=%d", u.baseURL, b.ID)
	return u.tg.RegisterCallback(ctx, b.Token, callbackURL, b.WebhookSecret)
}
