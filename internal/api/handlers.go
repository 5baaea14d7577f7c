// Package api exposes the HTTP surface: provider webhooks, the approval
// web form, and the operator API.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pending"
	"github.com/copperline/barback/internal/pkg/httputil"
	"github.com/copperline/barback/internal/service/approval"
	"github.com/copperline/barback/internal/service/inbound"
	"github.com/copperline/barback/internal/service/reminder"
	"github.com/copperline/barback/internal/worker"
)

// InboundPipeline runs the intake flow for real and simulated messages.
type InboundPipeline interface {
	Process(ctx context.Context, req inbound.Request) (*inbound.Outcome, error)
	Simulate(ctx context.Context, from, body string) (*inbound.Outcome, error)
}

// Approver applies reviewer decisions to pending drafts.
type Approver interface {
	Decide(ctx context.Context, id string, action approval.Action, editedText string) (*approval.Result, error)
}

// ReminderDirectory is the reminder service surface the API uses.
type ReminderDirectory interface {
	Create(ctx context.Context, input reminder.CreateInput) (*domain.Reminder, error)
	Get(ctx context.Context, id string) (*domain.Reminder, error)
	List(ctx context.Context, f reminder.ListFilter) ([]domain.Reminder, error)
	Cancel(ctx context.Context, id string) error
	Finalize(ctx context.Context, id, callStatus string) error
}

// MessageDirectory is the message store surface the API uses.
type MessageDirectory interface {
	Get(ctx context.Context, id string) (*domain.Message, error)
	SetDeliveryState(ctx context.Context, providerSID, state string) error
	Search(ctx context.Context, query string, limit int) ([]domain.Message, error)
}

// ConversationDirectory looks up conversations for the search API and
// the approval page.
type ConversationDirectory interface {
	Phone(ctx context.Context, conversationID string) (string, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Conversation, error)
}

// SettingsStore reads and writes runtime settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// BotResponder acknowledges bot callback queries.
type BotResponder interface {
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Handlers carries the dependencies of every HTTP handler.
type Handlers struct {
	pipeline      InboundPipeline
	approvals     Approver
	reminders     ReminderDirectory
	messages      MessageDirectory
	conversations ConversationDirectory
	settings      SettingsStore
	registry      pending.Registry

	bot            BotResponder
	dispatcher     *worker.ReminderDispatcher
	reconciler     *worker.CorrectionReconciler
	db             *sql.DB
	redisClient    *redis.Client
	operatorNumber string
	business       config.BusinessConfig

	startTime time.Time
}

// NewHandlers wires the core handler dependencies. Optional collaborators
// (bot, workers, infra handles) attach through setters.
func NewHandlers(
	pipeline InboundPipeline,
	approvals Approver,
	reminders ReminderDirectory,
	messages MessageDirectory,
	conversations ConversationDirectory,
	settings SettingsStore,
	registry pending.Registry,
) *Handlers {
	return &Handlers{
		pipeline:      pipeline,
		approvals:     approvals,
		reminders:     reminders,
		messages:      messages,
		conversations: conversations,
		settings:      settings,
		registry:      registry,
		startTime:     time.Now(),
	}
}

// SetBot sets the bot client used to acknowledge callback queries.
func (h *Handlers) SetBot(bot BotResponder) {
	h.bot = bot
}

// SetWorkers sets the workers reported by the status endpoint.
func (h *Handlers) SetWorkers(dispatcher *worker.ReminderDispatcher, reconciler *worker.CorrectionReconciler) {
	h.dispatcher = dispatcher
	h.reconciler = reconciler
}

// SetInfra sets the infrastructure handles pinged by the health check.
func (h *Handlers) SetInfra(db *sql.DB, redisClient *redis.Client) {
	h.db = db
	h.redisClient = redisClient
}

// SetOperatorNumber sets the forwarding target for inbound voice calls.
func (h *Handlers) SetOperatorNumber(number string) {
	h.operatorNumber = number
}

// SetBusiness sets the business identity used in rendered copy.
func (h *Handlers) SetBusiness(b config.BusinessConfig) {
	h.business = b
}

// HandleHealth reports process and dependency health.
//
//	GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := "healthy"

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = "down"
			status = "unhealthy"
		} else {
			checks["database"] = "up"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["redis"] = "up"
		}
	} else {
		checks["redis"] = "not_configured"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"status": status,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"checks": checks,
	})
}

// HandleStatus reports worker counters and registry depth.
//
//	GET /api/status
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	}

	if h.registry != nil {
		if n, err := h.registry.Size(r.Context()); err == nil {
			out["pending_actions"] = n
		}
	}
	if h.dispatcher != nil {
		out["reminder_dispatcher"] = h.dispatcher.Stats()
	}
	if h.reconciler != nil {
		out["correction_rules_promoted"] = h.reconciler.Promoted()
	}

	httputil.OK(w, out)
}
