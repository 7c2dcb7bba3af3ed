package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/model"
	"telegram-channel-autopilot/internal/infra/metrics"
	"telegram-channel-autopilot/internal/usecase"
)

// botView is the JSON shape of a bot in console responses. The token
// and webhook secret never leave the process.
type botView struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	ChannelInput string     `json:"channel_input"`
	ChannelID    *int64     `json:"channel_id,omitempty"`
	ChannelTitle string     `json:"channel_title,omitempty"`
	Verified     bool       `json:"verified"`
	Enabled      bool       `json:"enabled"`
	Prompt       string     `json:"prompt"`
	Model        string     `json:"model,omitempty"`
	HasAPIKey    bool       `json:"has_api_key"`
	Schedule     []string   `json:"schedule"`
	LastPostAt   *time.Time `json:"last_post_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func newBotView(b *model.Bot) botView {
	return botView{
		ID:           b.ID,
		Name:         b.Name,
		ChannelInput: b.ChannelInput,
		ChannelID:    b.ChannelID,
		ChannelTitle: b.ChannelTitle,
		Verified:     b.Verified,
		Enabled:      b.Enabled,
		Prompt:       b.Prompt,
		Model:        b.ModelOverride,
		HasAPIKey:    b.APIKeyOverride != "",
		Schedule:     b.Schedule,
		LastPostAt:   b.LastPostAt,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type logEntryView struct {
	ID                string    `json:"id"`
	BotID             int64     `json:"bot_id"`
	Status            string    `json:"status"`
	Message           string    `json:"message"`
	TelegramMessageID *int64    `json:"telegram_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func newLogEntryViews(entries []*model.PostLogEntry) []logEntryView {
	out := make([]logEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntryView{
			ID:                e.ID,
			BotID:             e.BotID,
			Status:            string(e.Status),
			Message:           e.Message,
			TelegramMessageID: e.TelegramMessageID,
			CreatedAt:         e.CreatedAt,
		})
	}
	return out
}

type botWriteRequest struct {
	Name         string   `json:"name"`
	Token        string   `json:"token"`
	ChannelInput string   `json:"channel_input"`
	Prompt       string   `json:"prompt"`
	APIKey       string   `json:"api_key"`
	Model        string   `json:"model"`
	Schedule     []string `json:"schedule"`
	Enabled      *bool    `json:"enabled"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses; anything unmapped
// stays an opaque 500 so internals never leak to the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, "Upstream rejected the bot token", http.StatusBadGateway)
	case errors.Is(err, domain.ErrBotNotMember):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNoAPIKey):
		http.Error(w, "No API key configured", http.StatusBadRequest)
	default:
		var uerr *domain.UpstreamError
		if errors.As(err, &uerr) {
			http.Error(w, uerr.Description, http.StatusBadGateway)
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// ===== Auth =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !s.auth.CheckPassword(req.Password) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("failed console login")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ===== Bots =====

func (s *Server) handleBotList(w http.ResponseWriter, r *http.Request) {
	bots, err := s.botUC.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]botView, 0, len(bots))
	for _, b := range bots {
		views = append(views, newBotView(b))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []botView `json:"data"`
	}{Data: views})
}

func (s *Server) handleBotCreate(w http.ResponseWriter, r *http.Request) {
	var req botWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	b, err := s.botUC.Create(r.Context(), usecase.CreateBotInput{
		Name:           req.Name,
		Token:          req.Token,
		ChannelInput:   req.ChannelInput,
		Prompt:         req.Prompt,
		APIKeyOverride: req.APIKey,
		ModelOverride:  req.Model,
		Schedule:       req.Schedule,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBotView(b))
}

func (s *Server) handleBotGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	b, err := s.botUC.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBotView(b))
}

func (s *Server) handleBotUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	var req botWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	b, err := s.botUC.Update(r.Context(), id, usecase.UpdateBotInput{
		Name:           req.Name,
		Token:          req.Token,
		ChannelInput:   req.ChannelInput,
		Prompt:         req.Prompt,
		APIKeyOverride: req.APIKey,
		ModelOverride:  req.Model,
		Schedule:       req.Schedule,
		Enabled:        req.Enabled,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBotView(b))
}

func (s *Server) handleBotDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	if err := s.botUC.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBotVerify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	b, err := s.botUC.VerifyChannel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBotView(b))
}

func (s *Server) handleBotRegisterCallback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	if err := s.botUC.RegisterCallback(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBotPostNow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	content, err := s.dispatchUC.PostNow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// ===== Settings =====

// handleSettingsTest lets the operator check an API key against the
// configured provider before saving it; an empty body tests the
// process-wide default key.
func (s *Server) handleSettingsTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.dispatchUC.TestGenerator(r.Context(), req.APIKey); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Logs =====

func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.logUC.Recent(r.Context(), parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []logEntryView `json:"data"`
	}{Data: newLogEntryViews(entries)})
}

func (s *Server) handleBotLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid bot id", http.StatusBadRequest)
		return
	}
	entries, err := s.logUC.ForBot(r.Context(), id, parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []logEntryView `json:"data"`
	}{Data: newLogEntryViews(entries)})
}

// ===== Telegram webhook =====

// handleWebhook terminates Telegram's update delivery. It keeps its
// responses minimal: Telegram only cares about the status code, and an
// error body must never leak why a secret was rejected.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	botID, err := strconv.ParseInt(r.URL.Query().Get("bot_id"), 10, 64)
	if err != nil {
		metrics.IncWebhookUpdate("bad_request")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	secret := r.URL.Query().Get("secret")
	if secret == "" {
		metrics.IncWebhookUpdate("bad_request")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		metrics.IncWebhookUpdate("bad_request")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	err = s.webhookUC.HandleUpdate(r.Context(), botID, secret, payload)
	switch {
	case err == nil:
		metrics.IncWebhookUpdate("accepted")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncWebhookUpdate("unknown_bot")
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.IncWebhookUpdate("forbidden")
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		metrics.IncWebhookUpdate("error")
		s.log.Error().Err(err).Int64("bot_id", botID).Msg("webhook processing failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
