package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

const startReply = "Hello! I post to my channel on a schedule. Manage me from the console."

// WebhookUseCase processes updates Telegram delivers to a bot's callback URL.
type WebhookUseCase interface {
	// HandleUpdate validates the per-bot secret, records the update and
	// answers /start commands. The raw payload is logged before parsing
	// so malformed updates still leave a trace.
	HandleUpdate(ctx context.Context, botID int64, secret string, payload []byte) error
}

type webhookUC struct {
	bots repository.BotRepository
	logs repository.PostLogRepository
	tg   adapter.ChannelClient
	log  *zerolog.Logger
}

func NewWebhookUseCase(
	bots repository.BotRepository,
	logs repository.PostLogRepository,
	tg adapter.ChannelClient,
	logger *zerolog.Logger,
) *webhookUC {
	compLog := logger.With().Str("component", "WebhookUseCase").Logger()
	return &webhookUC{bots: bots, logs: logs, tg: tg, log: &compLog}
}

func (u *webhookUC) HandleUpdate(ctx context.Context, botID int64, secret string, payload []byte) error {
	b, err := u.bots.FindByID(ctx, repository.NoTx, botID)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(b.WebhookSecret)) != 1 {
		return domain.ErrUnauthorized
	}

	entry := model.NewPostLogEntry(b.ID, model.PostStatusReceived,
		fmt.Sprintf("Received: %s", model.TruncateMessage(string(payload))), nil)
	if err := u.logs.Record(ctx, repository.NoTx, entry); err != nil {
		u.log.Error().Err(err).Int64("bot_id", b.ID).Msg("failed to record incoming update")
	}

	var upd tgbotapi.Update
	if err := json.Unmarshal(payload, &upd); err != nil {
		u.log.Warn().Err(err).Int64("bot_id", b.ID).Msg("unparseable update payload")
		return nil
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return nil
	}

	if strings.HasPrefix(strings.TrimSpace(upd.Message.Text), "/start") {
		if err := u.tg.SendReply(ctx, b.Token, upd.Message.Chat.ID, startReply); err != nil {
			u.log.Error().Err(err).Int64("bot_id", b.ID).Msg("failed to answer /start")
		}
	}
	return nil
}
