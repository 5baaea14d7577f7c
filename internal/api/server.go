package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/twilio"
)

// Server wraps the router and the http.Server lifecycle.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer wires the router. The search guard and signature middleware
// are built here so a bad CIDR list or empty auth token surfaces at
// startup rather than on the first request.
func NewServer(cfg *config.Config, h *Handlers) (*Server, error) {
	guard, err := NewSearchGuard(cfg.Search, NewRateLimiter(h.redisClient, cfg.Search.RatePerMinute))
	if err != nil {
		return nil, fmt.Errorf("building search guard: %w", err)
	}

	verify := TwilioSignature(
		twilio.NewValidator(cfg.Twilio.AuthToken),
		cfg.Server.PublicBaseURL,
		cfg.Twilio.ValidateSignature,
	)

	return &Server{
		config:  cfg.Server,
		handler: SetupRoutes(h, verify, guard),
	}, nil
}

// SetupRoutes configures the full route table.
func SetupRoutes(h *Handlers, verifySignature func(http.Handler) http.Handler, guard *SearchGuard) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The approval form is opened from chat links on phones; keep CORS
	// permissive, nothing here uses cookies.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)

	// Provider webhooks. Signature verification covers everything the
	// SMS provider calls; the bot webhook is authenticated by its
	// unguessable path registered with the bot API.
	r.Route("/webhook", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(verifySignature)
			r.Post("/sms", h.HandleInboundSMS)
			r.Post("/sms/status", h.HandleSMSStatus)
			r.Post("/voice", h.HandleInboundVoice)
			r.Post("/voice/status", h.HandleVoiceStatus)
			r.Get("/voice/reminder/{id}", h.HandleReminderCall)
			r.Post("/voice/reminder/{id}", h.HandleReminderCall)
		})
		r.Post("/bot", h.HandleBotWebhook)
	})

	// Browser fallback for approvals.
	r.Get("/approve/{id}", h.HandleApproveForm)
	r.Post("/approve/{id}", h.HandleApproveSubmit)

	r.Route("/api", func(r chi.Router) {
		r.With(guard.Middleware).Get("/search", h.HandleSearch)
		r.Post("/simulate", h.HandleSimulate)
		r.Route("/reminders", func(r chi.Router) {
			r.Post("/", h.HandleCreateReminder)
			r.Get("/", h.HandleListReminders)
			r.Get("/{id}", h.HandleGetReminder)
			r.Delete("/{id}", h.HandleCancelReminder)
		})
		r.Get("/settings/{key}", h.HandleGetSetting)
		r.Put("/settings/{key}", h.HandleSetSetting)
		r.Get("/status", h.HandleStatus)
	})

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
