package worker

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

const (
	// DefaultReconcileInterval is how often unpromoted correction rules
	// are retried against the vector store.
	DefaultReconcileInterval = 15 * time.Minute

	// DefaultReconcileBatchSize limits how many rules one cycle retries.
	DefaultReconcileBatchSize = 20

	// DefaultReconcileMaxAttempts caps promotion retries per rule.
	DefaultReconcileMaxAttempts = 5
)

// RulePromoter retries vector-store promotion for correction rules that
// were extracted but never stored.
type RulePromoter interface {
	Reconcile(ctx context.Context, batchSize, maxAttempts int) (int, error)
}

// CorrectionReconciler periodically re-promotes correction rules whose
// vector-store write failed at capture time. Without it, a memory service
// outage permanently drops the rules learned during the outage.
type CorrectionReconciler struct {
	promoter    RulePromoter
	interval    time.Duration
	batchSize   int
	maxAttempts int

	promoted int64
}

// NewCorrectionReconciler creates a reconciler with default settings.
func NewCorrectionReconciler(promoter RulePromoter) *CorrectionReconciler {
	return &CorrectionReconciler{
		promoter:    promoter,
		interval:    DefaultReconcileInterval,
		batchSize:   DefaultReconcileBatchSize,
		maxAttempts: DefaultReconcileMaxAttempts,
	}
}

// SetInterval overrides the cycle interval. Call before Start.
func (cr *CorrectionReconciler) SetInterval(d time.Duration) {
	if d > 0 {
		cr.interval = d
	}
}

// SetLimits overrides the per-cycle batch size and the per-rule attempt
// cap. Call before Start.
func (cr *CorrectionReconciler) SetLimits(batchSize, maxAttempts int) {
	if batchSize > 0 {
		cr.batchSize = batchSize
	}
	if maxAttempts > 0 {
		cr.maxAttempts = maxAttempts
	}
}

// Promoted returns how many rules this instance has promoted.
func (cr *CorrectionReconciler) Promoted() int64 {
	return atomic.LoadInt64(&cr.promoted)
}

// Start begins the reconcile loop. It blocks until ctx is cancelled.
func (cr *CorrectionReconciler) Start(ctx context.Context) {
	log.Printf("[CorrectionReconciler] Starting (interval=%s, batch_size=%d)", cr.interval, cr.batchSize)

	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[CorrectionReconciler] Stopping")
			return
		case <-ticker.C:
			cr.reconcile(ctx)
		}
	}
}

func (cr *CorrectionReconciler) reconcile(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	n, err := cr.promoter.Reconcile(cctx, cr.batchSize, cr.maxAttempts)
	if err != nil {
		log.Printf("[CorrectionReconciler] Reconcile cycle failed: %v", err)
		return
	}
	if n > 0 {
		atomic.AddInt64(&cr.promoted, int64(n))
		log.Printf("[CorrectionReconciler] Promoted %d correction rules", n)
	}
}
