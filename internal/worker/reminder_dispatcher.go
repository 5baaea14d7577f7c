package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/pkg/distlock"
)

const (
	// DefaultReminderPollInterval is how often to check for due reminders.
	DefaultReminderPollInterval = 30 * time.Second

	// ReminderDueBatchSize caps how many reminders one poll cycle claims.
	ReminderDueBatchSize = 20

	// dispatchLockKey is the per-cycle lock shared by all dispatcher
	// instances. The per-row conditional claim remains the correctness
	// guard; the lock only avoids duplicate Due queries across hosts.
	dispatchLockKey = "reminders:dispatch"
)

// ReminderStore is the slice of reminder persistence the dispatcher polls.
type ReminderStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error)
	Claim(ctx context.Context, id string) (bool, error)
	SetCallSID(ctx context.Context, id, callSID string) error
}

// ReminderFinalizer records the outcome of a call attempt. The dispatcher
// reports origination failures here so the retry cap and operator alerts
// live in one place with the voice status webhook.
type ReminderFinalizer interface {
	Finalize(ctx context.Context, id, callStatus string) error
}

// Caller originates outbound voice calls.
type Caller interface {
	Call(ctx context.Context, to, twimlURL, statusCallback string) (string, error)
}

// ReminderDispatcher polls for due reminders, claims them, and places the
// calls. The TwiML and status callback URLs carry the reminder ID so the
// voice webhooks can resolve the reminder without a provider SID lookup.
type ReminderDispatcher struct {
	store        ReminderStore
	finalizer    ReminderFinalizer
	caller       Caller
	baseURL      string
	redisClient  *redis.Client // optional; nil falls back to PG advisory locks
	db           *sql.DB
	pollInterval time.Duration

	// Stats
	callsPlaced int64
	callsFailed int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewReminderDispatcher creates a dispatcher. baseURL is the public base
// URL the voice webhooks are reachable at, without a trailing slash.
func NewReminderDispatcher(store ReminderStore, finalizer ReminderFinalizer, caller Caller, baseURL string) *ReminderDispatcher {
	return &ReminderDispatcher{
		store:        store,
		finalizer:    finalizer,
		caller:       caller,
		baseURL:      baseURL,
		pollInterval: DefaultReminderPollInterval,
	}
}

// SetPollInterval overrides the default poll interval. Call before Start.
func (rd *ReminderDispatcher) SetPollInterval(d time.Duration) {
	if d > 0 {
		rd.pollInterval = d
	}
}

// SetRedisClient sets the Redis client for distributed locking.
// If set, the dispatcher uses Redis-based locks; otherwise it falls back
// to PostgreSQL advisory locks.
func (rd *ReminderDispatcher) SetRedisClient(client *redis.Client) {
	rd.redisClient = client
}

// SetDB sets the database handle used for the advisory lock fallback.
func (rd *ReminderDispatcher) SetDB(db *sql.DB) {
	rd.db = db
}

// Start begins the dispatcher polling loop.
func (rd *ReminderDispatcher) Start() error {
	rd.mu.Lock()
	if rd.running {
		rd.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	rd.running = true
	rd.ctx, rd.cancel = context.WithCancel(context.Background())
	rd.mu.Unlock()

	log.Printf("[ReminderDispatcher] Starting with poll interval: %v", rd.pollInterval)

	rd.wg.Add(1)
	go rd.pollLoop()

	return nil
}

// Stop gracefully stops the dispatcher.
func (rd *ReminderDispatcher) Stop() {
	rd.mu.Lock()
	if !rd.running {
		rd.mu.Unlock()
		return
	}
	rd.running = false
	rd.mu.Unlock()

	log.Printf("[ReminderDispatcher] Stopping...")
	rd.cancel()
	rd.wg.Wait()
	log.Printf("[ReminderDispatcher] Stopped. Placed: %d calls, Failed: %d",
		atomic.LoadInt64(&rd.callsPlaced), atomic.LoadInt64(&rd.callsFailed))
}

// DispatcherStats is a point-in-time snapshot for the status endpoint.
type DispatcherStats struct {
	Running     bool  `json:"running"`
	CallsPlaced int64 `json:"calls_placed"`
	CallsFailed int64 `json:"calls_failed"`
}

// Stats returns the dispatcher's counters.
func (rd *ReminderDispatcher) Stats() DispatcherStats {
	rd.mu.RLock()
	running := rd.running
	rd.mu.RUnlock()
	return DispatcherStats{
		Running:     running,
		CallsPlaced: atomic.LoadInt64(&rd.callsPlaced),
		CallsFailed: atomic.LoadInt64(&rd.callsFailed),
	}
}

func (rd *ReminderDispatcher) pollLoop() {
	defer rd.wg.Done()

	ticker := time.NewTicker(rd.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rd.ctx.Done():
			return
		case <-ticker.C:
			rd.dispatchDue(rd.ctx)
		}
	}
}

// dispatchDue runs one poll cycle: lock, fetch due reminders, place calls.
func (rd *ReminderDispatcher) dispatchDue(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 60*time.Second)
	defer cancel()

	if rd.redisClient != nil || rd.db != nil {
		lock := distlock.NewLock(rd.redisClient, rd.db, dispatchLockKey, 2*time.Minute)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			log.Printf("[ReminderDispatcher] Error acquiring dispatch lock: %v", err)
			return
		}
		if !acquired {
			// Another instance is polling this cycle.
			return
		}
		defer lock.Release(ctx)
	}

	due, err := rd.store.Due(ctx, time.Now(), ReminderDueBatchSize)
	if err != nil {
		log.Printf("[ReminderDispatcher] Error fetching due reminders: %v", err)
		return
	}

	for _, rem := range due {
		rd.placeCall(ctx, rem)
	}
}

// placeCall claims one reminder and originates its call. A lost claim is
// not an error; another dispatcher got there first.
func (rd *ReminderDispatcher) placeCall(ctx context.Context, rem domain.Reminder) {
	claimed, err := rd.store.Claim(ctx, rem.ID)
	if err != nil {
		log.Printf("[ReminderDispatcher] Error claiming reminder %s: %v", rem.ID, err)
		return
	}
	if !claimed {
		return
	}

	callSID, err := rd.caller.Call(ctx, rem.Phone, rd.twimlURL(rem.ID), rd.statusCallbackURL(rem.ID))
	if err != nil {
		atomic.AddInt64(&rd.callsFailed, 1)
		log.Printf("[ReminderDispatcher] Call origination failed for reminder %s: %v", rem.ID, err)
		// Hand the failure to the same path the voice status webhook
		// uses so retries and the attempt cap stay consistent.
		if ferr := rd.finalizer.Finalize(ctx, rem.ID, "failed"); ferr != nil {
			log.Printf("[ReminderDispatcher] Error finalizing reminder %s: %v", rem.ID, ferr)
		}
		return
	}

	if err := rd.store.SetCallSID(ctx, rem.ID, callSID); err != nil {
		log.Printf("[ReminderDispatcher] Error recording call SID for reminder %s: %v", rem.ID, err)
	}

	atomic.AddInt64(&rd.callsPlaced, 1)
	log.Printf("[ReminderDispatcher] Placed call %s for reminder %s", callSID, rem.ID)
}

func (rd *ReminderDispatcher) twimlURL(reminderID string) string {
	return fmt.Sprintf("%s/webhook/voice/reminder/%s", rd.baseURL, url.PathEscape(reminderID))
}

func (rd *ReminderDispatcher) statusCallbackURL(reminderID string) string {
	return fmt.Sprintf("%s/webhook/voice/status?reminder_id=%s", rd.baseURL, url.QueryEscape(reminderID))
}
