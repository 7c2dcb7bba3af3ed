//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	"telegram-channel-autopilot/internal/domain/ports/repository"
)

// =============================
// Repositories (in-memory)
// =============================

// memBotRepo is a small in-memory implementation used by unit tests.
type memBotRepo struct {
	mu     sync.RWMutex
	store  map[int64]*model.Bot
	nextID int64

	saveErr     error // used by tests to simulate save failures
	findAllErr  error
	lastPostErr error
}

func newMemBotRepo() *memBotRepo {
	return &memBotRepo{store: make(map[int64]*model.Bot), nextID: 1}
}

var _ repository.BotRepository = (*memBotRepo)(nil)

func (m *memBotRepo) Save(ctx context.Context, tx repository.Tx, b *model.Bot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextID
	m.nextID++
	cp := *b
	m.store[b.ID] = &cp
	return nil
}

func (m *memBotRepo) Update(ctx context.Context, tx repository.Tx, b *model.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[b.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *b
	m.store[b.ID] = &cp
	return nil
}

func (m *memBotRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memBotRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBotRepo) FindAll(ctx context.Context, tx repository.Tx) ([]*model.Bot, error) {
	if m.findAllErr != nil {
		return nil, m.findAllErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Bot, 0, len(m.store))
	for _, b := range m.store {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memBotRepo) FindEligible(ctx context.Context, tx repository.Tx) ([]*model.Bot, error) {
	if m.findAllErr != nil {
		return nil, m.findAllErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Bot, 0, len(m.store))
	for _, b := range m.store {
		if b.Eligible() {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memBotRepo) MarkVerified(ctx context.Context, tx repository.Tx, id int64, channelID int64, channelTitle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.ChannelID = &channelID
	b.ChannelTitle = channelTitle
	b.Verified = true
	return nil
}

func (m *memBotRepo) UpdateLastPost(ctx context.Context, tx repository.Tx, id int64, at time.Time) error {
	if m.lastPostErr != nil {
		return m.lastPostErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	cp := at
	b.LastPostAt = &cp
	return nil
}

// seed installs a bot directly, bypassing Save's ID assignment.
func (m *memBotRepo) seed(b *model.Bot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.store[b.ID] = &cp
	if b.ID >= m.nextID {
		m.nextID = b.ID + 1
	}
}

// memPostLogRepo collects entries in insertion order.
type memPostLogRepo struct {
	mu      sync.Mutex
	entries []*model.PostLogEntry

	recordErr error
}

func newMemPostLogRepo() *memPostLogRepo {
	return &memPostLogRepo{}
}

var _ repository.PostLogRepository = (*memPostLogRepo)(nil)

func (m *memPostLogRepo) Record(ctx context.Context, tx repository.Tx, e *model.PostLogEntry) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memPostLogRepo) FindRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.PostLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PostLogEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPostLogRepo) FindByBot(ctx context.Context, tx repository.Tx, botID int64, limit int) ([]*model.PostLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PostLogEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].BotID == botID {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPostLogRepo) DeleteByBot(ctx context.Context, tx repository.Tx, botID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.BotID != botID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *memPostLogRepo) all() []*model.PostLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PostLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction unless
// a test installs WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTx)
}

// =============================
// Adapters
// =============================

// ---- Mock ContentGenerator ----

type MockGenerator struct {
	mu      sync.Mutex
	Prompts []string // captured prompts, in call order
	Keys    []string
	Models  []string

	GenerateFunc       func(ctx context.Context, prompt, apiKey, model string) (string, error)
	TestConnectionFunc func(ctx context.Context, apiKey string) error
}

var _ adapter.ContentGenerator = (*MockGenerator)(nil)

func (m *MockGenerator) Generate(ctx context.Context, prompt, apiKey, model string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.Keys = append(m.Keys, apiKey)
	m.Models = append(m.Models, model)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, apiKey, model)
	}
	return "generated content", nil
}

func (m *MockGenerator) TestConnection(ctx context.Context, apiKey string) error {
	m.mu.Lock()
	m.Keys = append(m.Keys, apiKey)
	m.mu.Unlock()
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx, apiKey)
	}
	return nil
}

// ---- Mock ChannelClient ----

type publishCall struct {
	Token  string
	Target model.ChatRef
	Text   string
}

type replyCall struct {
	Token  string
	ChatID int64
	Text   string
}

type MockChannelClient struct {
	mu        sync.Mutex
	Published []publishCall
	Replies   []replyCall

	IdentifyFunc         func(ctx context.Context, token string) (adapter.BotIdentity, error)
	ResolveChannelFunc   func(ctx context.Context, token, channelInput string) (adapter.ChannelInfo, error)
	MembershipFunc       func(ctx context.Context, token string, channelID, botUserID int64) (string, error)
	PublishFunc          func(ctx context.Context, token string, target model.ChatRef, text string) (int64, error)
	RegisterCallbackFunc func(ctx context.Context, token, callbackURL, secret string) error
	SendReplyFunc        func(ctx context.Context, token string, chatID int64, text string) error
}

var _ adapter.ChannelClient = (*MockChannelClient)(nil)

func (m *MockChannelClient) Identify(ctx context.Context, token string) (adapter.BotIdentity, error) {
	if m.IdentifyFunc != nil {
		return m.IdentifyFunc(ctx, token)
	}
	return adapter.BotIdentity{ID: 42, Username: "test_bot", Name: "Test Bot"}, nil
}

func (m *MockChannelClient) ResolveChannel(ctx context.Context, token, channelInput string) (adapter.ChannelInfo, error) {
	if m.ResolveChannelFunc != nil {
		return m.ResolveChannelFunc(ctx, token, channelInput)
	}
	return adapter.ChannelInfo{ID: -100123, Title: "Test Channel"}, nil
}

func (m *MockChannelClient) Membership(ctx context.Context, token string, channelID, botUserID int64) (string, error) {
	if m.MembershipFunc != nil {
		return m.MembershipFunc(ctx, token, channelID, botUserID)
	}
	return adapter.MemberStatusAdministrator, nil
}

func (m *MockChannelClient) Publish(ctx context.Context, token string, target model.ChatRef, text string) (int64, error) {
	m.mu.Lock()
	m.Published = append(m.Published, publishCall{Token: token, Target: target, Text: text})
	n := len(m.Published)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, token, target, text)
	}
	return int64(1000 + n), nil
}

func (m *MockChannelClient) RegisterCallback(ctx context.Context, token, callbackURL, secret string) error {
	if m.RegisterCallbackFunc != nil {
		return m.RegisterCallbackFunc(ctx, token, callbackURL, secret)
	}
	return nil
}

func (m *MockChannelClient) SendReply(ctx context.Context, token string, chatID int64, text string) error {
	m.mu.Lock()
	m.Replies = append(m.Replies, replyCall{Token: token, ChatID: chatID, Text: text})
	m.mu.Unlock()
	if m.SendReplyFunc != nil {
		return m.SendReplyFunc(ctx, token, chatID, text)
	}
	return nil
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func mustSchedule(marks ...string) model.Schedule {
	s, err := model.NewSchedule(marks)
	if err != nil {
		panic(err)
	}
	return s
}

// testBot builds a verified, enabled bot with a fixed identity.
func testBot(id int64, marks ...string) *model.Bot {
	channelID := int64(-100555)
	return &model.Bot{
		ID:            id,
		Name:          "news-bot",
		Token:         "token-123",
		WebhookSecret: "s3cr3t",
		ChannelInput:  "@newschan",
		ChannelID:     &channelID,
		ChannelTitle:  "News Channel",
		Verified:      true,
		Enabled:       true,
		Prompt:        "write a post",
		Schedule:      mustSchedule(marks...),
	}
}

func boolPtr(b bool) *bool { return &b }
