package app

import (
	"context"
	"log"
	"time"

	"github.com/suipay/payment-service/internal/store"
)

// Jobs holds the scheduled maintenance tasks registered with the cron runner.
type Jobs struct {
	repo       store.Repository
	staleAfter time.Duration
}

// NewJobs creates the scheduled jobs container.
func NewJobs(repo store.Repository, staleAfter time.Duration) *Jobs {
	return &Jobs{repo: repo, staleAfter: staleAfter}
}

// ReportStalePendingOrders logs how many orders have sat in PENDING longer
// than the configured threshold. A growing count usually means the on-chain
// module id is misconfigured or the reconciler cannot reach the node.
func (j *Jobs) ReportStalePendingOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	count, err := j.repo.CountStalePendingOrders(ctx, j.staleAfter)
	if err != nil {
		log.Printf("level=warn component=jobs job=stale_pending_report msg=\"count failed\" err=%v", err)
		return
	}
	if count == 0 {
		return
	}
	log.Printf("level=warn component=jobs job=stale_pending_report msg=\"orders pending beyond threshold\" count=%d threshold=%s", count, j.staleAfter)
}
