package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-channel-autopilot/internal/usecase"
)

type Server struct {
	botUC      usecase.BotUseCase
	dispatchUC usecase.DispatchUseCase
	logUC      usecase.LogUseCase
	webhookUC  usecase.WebhookUseCase
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	botUC usecase.BotUseCase,
	dispatchUC usecase.DispatchUseCase,
	logUC usecase.LogUseCase,
	webhookUC usecase.WebhookUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		botUC:      botUC,
		dispatchUC: dispatchUC,
		logUC:      logUC,
		webhookUC:  webhookUC,
		auth:       auth,
		log:        &srvLog,
	}
}

// Router assembles the full HTTP surface: the unauthenticated Telegram
// callback and health endpoints, and the session-guarded console API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/bots", s.handleBotList)
			r.Post("/bots", s.handleBotCreate)
			r.Route("/bots/{id}", func(r chi.Router) {
				r.Get("/", s.handleBotGet)
				r.Put("/", s.handleBotUpdate)
				r.Delete("/", s.handleBotDelete)
				r.Post("/verify", s.handleBotVerify)
				r.Post("/callback", s.handleBotRegisterCallback)
				r.Post("/post", s.handleBotPostNow)
				r.Get("/logs", s.handleBotLogs)
			})
			r.Get("/logs", s.handleLogs)
			r.Post("/settings/test", s.handleSettingsTest)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// sessionMiddleware guards the console API with the JWT session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
