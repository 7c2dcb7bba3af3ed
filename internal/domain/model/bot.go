package model

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"telegram-channel-autopilot/internal/domain"
)

// ChatRef identifies a Telegram chat either by numeric id or by a
// leading-@ username. Exactly one field is set.
type ChatRef struct {
	ID       int64
	Username string
}

// ParseChannelInput interprets the operator-configured channel input:
// a leading "@" means a public username, anything else must parse as a
// numeric chat id.
func ParseChannelInput(input string) (ChatRef, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ChatRef{}, domain.ErrInvalidArgument
	}
	if strings.HasPrefix(input, "@") {
		return ChatRef{Username: input}, nil
	}
	id, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return ChatRef{}, domain.ErrInvalidArgument
	}
	return ChatRef{ID: id}, nil
}

// Bot is the unit of scheduling and publishing: one Telegram bot account
// bound to one channel, with its own prompt, schedule and credentials.
type Bot struct {
	ID            int64
	Name          string
	Token         string
	WebhookSecret string

	ChannelInput string
	ChannelID    *int64 // resolved by verification, nil until then
	ChannelTitle string
	Verified     bool
	Enabled      bool

	Prompt         string
	APIKeyOverride string
	ModelOverride  string

	Schedule   Schedule
	LastPostAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBot creates an unverified, enabled bot with a fresh webhook secret.
func NewBot(name, token, channelInput, prompt string, schedule Schedule) (*Bot, error) {
	if name == "" || token == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Bot{
		Name:          name,
		Token:         token,
		WebhookSecret: newWebhookSecret(),
		ChannelInput:  channelInput,
		Enabled:       true,
		Prompt:        prompt,
		Schedule:      schedule,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Eligible reports whether the bot may be picked up by automatic
// dispatch. Manual post-now deliberately ignores this gate.
func (b *Bot) Eligible() bool { return b.Enabled && b.Verified }

// PublishTarget returns the chat to publish to: the verified channel id
// when resolution has happened, otherwise the raw operator input.
func (b *Bot) PublishTarget() (ChatRef, error) {
	if b.ChannelID != nil {
		return ChatRef{ID: *b.ChannelID}, nil
	}
	return ParseChannelInput(b.ChannelInput)
}

func newWebhookSecret() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
