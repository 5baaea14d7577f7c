package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/copperline/barback/internal/alert"
	"github.com/copperline/barback/internal/api"
	"github.com/copperline/barback/internal/calendar"
	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/draft"
	"github.com/copperline/barback/internal/enrich"
	"github.com/copperline/barback/internal/llm"
	"github.com/copperline/barback/internal/media"
	"github.com/copperline/barback/internal/memory"
	"github.com/copperline/barback/internal/menu"
	"github.com/copperline/barback/internal/pending"
	"github.com/copperline/barback/internal/repository/postgres"
	"github.com/copperline/barback/internal/service/approval"
	"github.com/copperline/barback/internal/service/correction"
	"github.com/copperline/barback/internal/service/inbound"
	"github.com/copperline/barback/internal/service/reminder"
	"github.com/copperline/barback/internal/telegram"
	"github.com/copperline/barback/internal/twilio"
	"github.com/copperline/barback/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Barback Message Router (cmd/server/main.go)               ║")
	log.Println("║  Webhook-driven SMS/voice inbox with human-gated replies   ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	// Connect to PostgreSQL. It is the system of record for conversations,
	// messages, corrections, reminders, and settings; refuse to start
	// without it.
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	log.Println("Database connected successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional. With it, the pending-action registry and worker
	// locks are shared across instances; without it, a single instance
	// keeps pending actions in memory and locks through PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v, falling back to in-process registry", cfg.Redis.URL, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (shared pending registry and worker locks enabled)", cfg.Redis.URL)
		}
		pingCancel()
	} else {
		log.Println("Redis not configured (redis.url not set), using in-process pending registry")
	}

	var registry pending.Registry
	if redisClient != nil {
		registry = pending.NewRedis(redisClient)
	} else {
		registry = pending.NewMemory()
	}

	// Repositories
	conversationRepo := postgres.NewConversationRepo(db)
	messageRepo := postgres.NewMessageRepo(db)
	correctionRepo := postgres.NewCorrectionRepo(db)
	reminderRepo := postgres.NewReminderRepo(db)
	settingsRepo := postgres.NewSettingsRepo(db)

	// Twilio is the send/receive provider for both SMS and voice
	twilioClient := twilio.NewClient(cfg.Twilio)
	log.Printf("Twilio client initialized (from: %s)", twilioClient.FromNumber())

	// Telegram delivers draft notifications to the reviewer. Without it
	// the approval service auto-approves every draft, so warn loudly.
	var notifier approval.Notifier
	var botClient *telegram.Client
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		botClient = telegram.NewClient(cfg.Telegram)
		notifier = telegram.NewNotifier(botClient, cfg.Server.PublicBaseURL)
		log.Printf("Telegram notifier initialized (chat: %d)", cfg.Telegram.ChatID)
	} else {
		log.Println("Warning: Telegram not configured, drafts will auto-approve without review")
	}

	// Menu service evaluates inbound texts for menu-change requests and
	// applies them on approval
	var evaluator inbound.Evaluator
	var applier approval.ActionApplier
	var mirror inbound.Mirror
	if cfg.Menu.Enabled && cfg.Menu.BaseURL != "" {
		menuClient := menu.NewClient(cfg.Menu)
		evaluator = menuClient
		applier = menuClient
		if cfg.Menu.MirrorEnabled {
			mirror = menuClient
			log.Println("Menu integration initialized (conversation mirroring on)")
		} else {
			log.Println("Menu integration initialized")
		}
	} else {
		log.Println("Menu integration not configured (no action detection)")
	}

	// Model backend for draft generation and rule extraction. May be nil;
	// the draft generator falls back to canned replies.
	completer, err := llm.NewCompleter(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize model backend: %v", err)
	}

	var embedder llm.Embedder
	if e, ok := completer.(llm.Embedder); ok {
		embedder = e
	}

	// Semantic memory backs both context enrichment and promoted
	// correction rules
	var searcher enrich.MemorySearcher
	var memWriter correction.MemoryWriter
	if cfg.Memory.Enabled && cfg.Memory.BaseURL != "" {
		if embedder == nil {
			log.Println("Warning: Memory configured without an embedding backend, skipping")
		} else {
			memClient := memory.NewClient(cfg.Memory, embedder)
			searcher = memClient
			memWriter = memClient
			log.Printf("Memory service initialized (%s)", cfg.Memory.BaseURL)
		}
	} else {
		log.Println("Memory service not configured")
	}

	var calSource enrich.CalendarSource
	if cfg.Calendar.Enabled && cfg.Calendar.ClientID != "" {
		calSource = calendar.NewClient(ctx, cfg.Calendar)
		log.Printf("Calendar source initialized (%d calendars)", len(cfg.Calendar.CalendarIDs))
	} else {
		log.Println("Calendar source not configured")
	}

	aggregator := enrich.NewAggregator(searcher, calSource, messageRepo, correctionRepo)
	generator := draft.NewGenerator(completer, cfg.Business)

	// Operator alerts go out over SES
	var alerter approval.Alerter
	if cfg.Alerts.Enabled && cfg.Alerts.To != "" {
		mailer, err := alert.NewMailer(ctx, cfg.Alerts)
		if err != nil {
			log.Printf("Warning: Failed to initialize alert mailer: %v", err)
		} else {
			alerter = mailer
			log.Printf("Operator alerts initialized (to: %s)", cfg.Alerts.To)
		}
	} else {
		log.Println("Operator alerts not configured")
	}

	// MMS media archival to S3
	var archiver inbound.MediaArchiver
	if cfg.Storage.S3Bucket != "" {
		arch, err := media.NewArchiver(ctx, cfg.Storage, cfg.Twilio, messageRepo)
		if err != nil {
			log.Printf("Warning: Failed to initialize media archiver: %v", err)
		} else {
			archiver = arch
			log.Printf("Media archiver initialized (bucket: %s)", cfg.Storage.S3Bucket)
		}
	} else {
		log.Println("Media archiver not configured (inbound MMS links will expire)")
	}

	// Services
	correctionSvc := correction.NewService(correctionRepo, completer, memWriter)
	approvalSvc := approval.NewService(messageRepo, conversationRepo, registry, applier, twilioClient, notifier, correctionSvc, alerter)
	reminderSvc := reminder.NewService(reminderRepo, alerter)
	inboundSvc := inbound.NewService(conversationRepo, messageRepo, aggregator, evaluator, generator, registry, approvalSvc, mirror, archiver)

	// Start the reminder dispatcher (polls for due reminders and places
	// calls). The dispatch lock rides on Redis when available, PG
	// advisory locks otherwise.
	dispatcher := worker.NewReminderDispatcher(reminderRepo, reminderSvc, twilioClient, cfg.Server.PublicBaseURL)
	dispatcher.SetPollInterval(cfg.Workers.ReminderPollInterval())
	if redisClient != nil {
		dispatcher.SetRedisClient(redisClient)
	} else {
		dispatcher.SetDB(db)
	}
	if err := dispatcher.Start(); err != nil {
		log.Printf("Warning: Failed to start reminder dispatcher: %v", err)
	} else {
		log.Printf("Reminder dispatcher started (polls every %v)", cfg.Workers.ReminderPollInterval())
	}

	// Start the correction reconciler (retries failed rule extractions)
	reconciler := worker.NewCorrectionReconciler(correctionSvc)
	reconciler.SetInterval(cfg.Workers.ReconcileInterval())
	reconciler.SetLimits(cfg.Workers.ReconcileBatchSize, cfg.Workers.ReconcileMaxAttempts)
	go reconciler.Start(ctx)
	log.Printf("Correction reconciler started (runs every %v)", cfg.Workers.ReconcileInterval())

	// API server
	handlers := api.NewHandlers(inboundSvc, approvalSvc, reminderSvc, messageRepo, conversationRepo, settingsRepo, registry)
	if botClient != nil {
		handlers.SetBot(botClient)
	}
	handlers.SetWorkers(dispatcher, reconciler)
	handlers.SetInfra(db, redisClient)
	handlers.SetOperatorNumber(cfg.Twilio.OperatorNumber)
	handlers.SetBusiness(cfg.Business)

	server, err := api.NewServer(cfg, handlers)
	if err != nil {
		log.Fatalf("Failed to build API server: %v", err)
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s:%d (public base: %s)", host, port, cfg.Server.PublicBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	// Stop taking webhooks first, then wind down the workers and drain
	// the in-flight rule extractions.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	dispatcher.Stop()
	cancel()
	correctionSvc.Wait()

	if redisClient != nil {
		redisClient.Close()
	}
	db.Close()

	log.Println("Server stopped")
}
