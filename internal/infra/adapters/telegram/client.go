package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
)

var _ adapter.ChannelClient = (*Client)(nil)

// Client is the multi-tenant Telegram Bot API adapter. tgbotapi binds
// one token per BotAPI value, so instances are cached per token; the
// getMe performed at construction doubles as the Identify check.
//
// tgbotapi calls do not take a context; the bounded timeout lives on the
// shared http.Client.
type Client struct {
	endpoint string
	httpc    *http.Client

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

func NewClient(apiEndpoint string, timeout time.Duration) *Client {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: apiEndpoint,
		httpc:    &http.Client{Timeout: timeout},
		bots:     make(map[string]*tgbotapi.BotAPI),
	}
}

func (c *Client) api(token string) (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bots[token]; ok {
		return b, nil
	}
	b, err := tgbotapi.NewBotAPIWithClient(token, c.endpoint, c.httpc)
	if err != nil {
		var terr *tgbotapi.Error
		if errors.As(err, &terr) {
			// The API rejected the token itself.
			return nil, fmt.Errorf("%w: %s", domain.ErrUnauthorized, terr.Message)
		}
		return nil, &domain.TransportError{Op: "telegram.getMe", Err: err}
	}
	c.bots[token] = b
	return b, nil
}

func (c *Client) Identify(ctx context.Context, token string) (adapter.BotIdentity, error) {
	b, err := c.api(token)
	if err != nil {
		return adapter.BotIdentity{}, err
	}
	return adapter.BotIdentity{
		ID:       b.Self.ID,
		Username: b.Self.UserName,
		Name:     b.Self.FirstName,
	}, nil
}

func (c *Client) ResolveChannel(ctx context.Context, token, channelInput string) (adapter.ChannelInfo, error) {
	ref, err := model.ParseChannelInput(channelInput)
	if err != nil {
		return adapter.ChannelInfo{}, err
	}
	b, err := c.api(token)
	if err != nil {
		return adapter.ChannelInfo{}, err
	}
	chat, err := b.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{
			ChatID:             ref.ID,
			SuperGroupUsername: ref.Username,
		},
	})
	if err != nil {
		return adapter.ChannelInfo{}, mapErr("telegram.getChat", err)
	}
	title := chat.Title
	if title == "" {
		title = chat.UserName
	}
	return adapter.ChannelInfo{ID: chat.ID, Title: title}, nil
}

func (c *Client) Membership(ctx context.Context, token string, channelID, botUserID int64) (string, error) {
	b, err := c.api(token)
	if err != nil {
		return "", err
	}
	member, err := b.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: channelID,
			UserID: botUserID,
		},
	})
	if err != nil {
		return "", mapErr("telegram.getChatMember", err)
	}
	return member.Status, nil
}

func (c *Client) Publish(ctx context.Context, token string, target model.ChatRef, text string) (int64, error) {
	b, err := c.api(token)
	if err != nil {
		return 0, err
	}
	var msg tgbotapi.MessageConfig
	if target.Username != "" {
		msg = tgbotapi.NewMessageToChannel(target.Username, text)
	} else {
		msg = tgbotapi.NewMessage(target.ID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := b.Send(msg)
	if err != nil {
		return 0, mapErr("telegram.sendMessage", err)
	}
	return int64(sent.MessageID), nil
}

func (c *Client) RegisterCallback(ctx context.Context, token, callbackURL, secret string) error {
	b, err := c.api(token)
	if err != nil {
		return err
	}
	u, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("%w: callback url: %v", domain.ErrInvalidArgument, err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()

	wh, err := tgbotapi.NewWebhook(u.String())
	if err != nil {
		return fmt.Errorf("%w: webhook url: %v", domain.ErrInvalidArgument, err)
	}
	wh.AllowedUpdates = []string{"message", "channel_post"}
	if _, err := b.Request(wh); err != nil {
		return mapErr("telegram.setWebhook", err)
	}
	return nil
}

func (c *Client) SendReply(ctx context.Context, token string, chatID int64, text string) error {
	b, err := c.api(token)
	if err != nil {
		return err
	}
	if _, err := b.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return mapErr("telegram.sendMessage", err)
	}
	return nil
}

// mapErr classifies tgbotapi failures: an ok=false API envelope becomes
// an UpstreamError carrying the description, everything else is
// transport.
func mapErr(op string, err error) error {
	var terr *tgbotapi.Error
	if errors.As(err, &terr) {
		return &domain.UpstreamError{Op: op, Description: terr.Message}
	}
	return &domain.TransportError{Op: op, Err: err}
}
