// File: internal/usecase/dispatch_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

// Compile-time check
var _ DispatchUseCase = (*dispatchUC)(nil)

// TickReport aggregates one tick's outcome. Derived, never persisted.
type TickReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type DispatchUseCase interface {
	// RunTick evaluates every eligible bot against its schedule at `now`
	// and runs the generate→publish→record pipeline for the due ones.
	// Per-bot failures are recorded and counted, never raised; only a
	// failure to load the bot population is tick-fatal.
	RunTick(ctx context.Context, now time.Time) (TickReport, error)
	// PostNow runs the same pipeline for one bot immediately, bypassing
	// both the due-check and the enabled/verified gate. Explicit operator
	// override; returns the generated content.
	PostNow(ctx context.Context, botID int64) (string, error)
	// TestGenerator checks an API key against the provider before the
	// operator saves it. An empty key tests the configured default.
	TestGenerator(ctx context.Context, apiKey string) error
}

type dispatchUC struct {
	bots repository.BotRepository
	logs repository.PostLogRepository
	gen  adapter.ContentGenerator
	tg   adapter.ChannelClient

	defaultKey   string
	defaultModel string
	loc          *time.Location
	log          *zerolog.Logger
}

func NewDispatchUseCase(
	bots repository.BotRepository,
	logs repository.PostLogRepository,
	gen adapter.ContentGenerator,
	tg adapter.ChannelClient,
	defaultKey, defaultModel string,
	loc *time.Location,
	logger *zerolog.Logger,
) *dispatchUC {
	if loc == nil {
		loc = time.UTC
	}
	compLog := logger.With().Str("component", "DispatchUseCase").Logger()
	return &dispatchUC{
		bots:         bots,
		logs:         logs,
		gen:          gen,
		tg:           tg,
		defaultKey:   defaultKey,
		defaultModel: defaultModel,
		loc:          loc,
		log:          &compLog,
	}
}

func (d *dispatchUC) RunTick(ctx context.Context, now time.Time) (TickReport, error) {
	// Marks match at minute granularity.
	now = now.Truncate(time.Minute)

	bots, err := d.bots.FindEligible(ctx, repository.NoTx)
	if err != nil {
		return TickReport{}, fmt.Errorf("load eligible bots: %w", err)
	}

	var rep TickReport
	for _, b := range bots {
		if !b.Schedule.IsDue(b.LastPostAt, now, d.loc) {
			continue
		}
		rep.Attempted++
		if _, err := d.dispatch(ctx, b, now, "Scheduled post: "); err != nil {
			rep.Failed++
			d.log.Warn().Err(err).Int64("bot_id", b.ID).Msg("dispatch failed")
			continue
		}
		rep.Succeeded++
		d.log.Info().Int64("bot_id", b.ID).Str("bot", b.Name).Msg("posted")
	}
	return rep, nil
}

func (d *dispatchUC) PostNow(ctx context.Context, botID int64) (string, error) {
	b, err := d.bots.FindByID(ctx, repository.NoTx, botID)
	if err != nil {
		return "", err
	}
	// No due-check and no Eligible() gate here: post-now is an explicit
	// operator action, valid even for disabled or unverified bots.
	return d.dispatch(ctx, b, time.Now().Truncate(time.Minute), "Posted: ")
}

func (d *dispatchUC) TestGenerator(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		apiKey = d.defaultKey
	}
	return d.gen.TestConnection(ctx, apiKey)
}

// dispatch runs generate→publish→record for one bot. Any stage failure
// is recorded as an `error` log entry and returned; last_post_at is
// advanced on success only.
func (d *dispatchUC) dispatch(ctx context.Context, b *model.Bot, now time.Time, prefix string) (string, error) {
	apiKey, genModel := d.resolveGeneration(b)

	content, err := d.gen.Generate(ctx, b.Prompt, apiKey, genModel)
	if err != nil {
		d.recordFailure(ctx, b.ID, err)
		return "", err
	}

	target, err := b.PublishTarget()
	if err != nil {
		d.recordFailure(ctx, b.ID, fmt.Errorf("channel %q: %w", b.ChannelInput, err))
		return "", err
	}
	msgID, err := d.tg.Publish(ctx, b.Token, target, content)
	if err != nil {
		d.recordFailure(ctx, b.ID, err)
		return "", err
	}

	// The message is out. Failures past this point must not turn the
	// attempt into an error; they are logged and the success stands.
	entry := model.NewPostLogEntry(b.ID, model.PostStatusSuccess, prefix+model.TruncateMessage(content), &msgID)
	if err := d.logs.Record(ctx, repository.NoTx, entry); err != nil {
		d.log.Error().Err(err).Int64("bot_id", b.ID).Msg("record success entry failed")
	}
	if err := d.bots.UpdateLastPost(ctx, repository.NoTx, b.ID, now); err != nil {
		d.log.Error().Err(err).Int64("bot_id", b.ID).Msg("update last_post_at failed")
	}
	return content, nil
}

// resolveGeneration applies the override precedence: bot-specific
// key/model beat the process-wide defaults. A missing key is NOT
// resolved here; the generator fails the attempt so it surfaces in the
// outcome log instead of being skipped silently.
func (d *dispatchUC) resolveGeneration(b *model.Bot) (apiKey, genModel string) {
	apiKey = d.defaultKey
	if b.APIKeyOverride != "" {
		apiKey = b.APIKeyOverride
	}
	genModel = d.defaultModel
	if b.ModelOverride != "" {
		genModel = b.ModelOverride
	}
	return apiKey, genModel
}

func (d *dispatchUC) recordFailure(ctx context.Context, botID int64, cause error) {
	entry := model.NewPostLogEntry(botID, model.PostStatusError, "Error: "+cause.Error(), nil)
	if err := d.logs.Record(ctx, repository.NoTx, entry); err != nil {
		d.log.Error().Err(err).Int64("bot_id", botID).Msg("record error entry failed")
	}
}
