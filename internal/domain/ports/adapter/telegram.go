package adapter

import (
	"context"

	"telegram-channel-autopilot/internal/domain/model"
)

// BotIdentity is the result of a getMe call.
type BotIdentity struct {
	ID       int64
	Username string
	Name     string
}

// ChannelInfo is the resolved identity of a channel.
type ChannelInfo struct {
	ID    int64
	Title string
}

// Membership statuses accepted by channel verification.
const (
	MemberStatusAdministrator = "administrator"
	MemberStatusMember        = "member"
)

// ChannelClient is the multi-tenant port to the Telegram Bot API. Every
// call carries the acting bot's token. All operations are synchronous
// request/response with a bounded timeout; no retry is performed here,
// callers decide whether an attempt is repeated.
type ChannelClient interface {
	// Identify verifies the token and returns the bot account identity.
	// An invalid token fails with domain.ErrUnauthorized.
	Identify(ctx context.Context, token string) (BotIdentity, error)
	// ResolveChannel looks up the channel named by the operator input
	// ("@name" or a numeric id).
	ResolveChannel(ctx context.Context, token, channelInput string) (ChannelInfo, error)
	// Membership returns the bot's member status in the channel. Any
	// status outside the accepted set is a verification failure decided
	// by the caller, not a transport error.
	Membership(ctx context.Context, token string, channelID, botUserID int64) (string, error)
	// Publish delivers text to the channel and returns the Telegram
	// message id.
	Publish(ctx context.Context, token string, target model.ChatRef, text string) (int64, error)
	// RegisterCallback points the bot's webhook at callbackURL with the
	// shared secret embedded as a query parameter. Idempotent.
	RegisterCallback(ctx context.Context, token, callbackURL, secret string) error
	// SendReply sends a plain message to a chat (webhook /start welcome).
	SendReply(ctx context.Context, token string, chatID int64, text string) error
}
