/**
 * @description
 * This file implements the payment reconciliation loop: a single long-lived
 * background task that polls the Sui node for payment events and transitions
 * matching orders from PENDING to PAID through one conditional update per
 * event. The loop is built for an untrusted, externally-paced event source:
 * every failure is recovered locally and the sink is idempotent, so replaying
 * a page after a crash is always safe and skipping one never happens.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store, pkg/suiclient, pkg/rabbitmq.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/domain"
	"github.com/suipay/payment-service/internal/store"
	"github.com/suipay/payment-service/pkg/rabbitmq"
	"github.com/suipay/payment-service/pkg/suiclient"
)

// EventSource abstracts the node's event-query endpoint so the loop can be
// tested against a fake.
type EventSource interface {
	QueryEvents(ctx context.Context, filter suiclient.EventFilter, cursor *suiclient.EventID, limit int, descending bool) (*suiclient.EventPage, error)
}

// ReconcilerStore is the slice of the repository the loop needs: the
// conditional transition, the order lookup for event enrichment, and the
// durable cursor.
type ReconcilerStore interface {
	MarkOrderPaidIfPending(ctx context.Context, id uuid.UUID) (int64, error)
	FindOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	LoadEventCursor(ctx context.Context, packageID, module string) (*domain.EventCursor, error)
	SaveEventCursor(ctx context.Context, packageID, module string, cursor domain.EventCursor) error
}

// ReconcilerConfig carries the loop's wiring, resolved once at startup.
type ReconcilerConfig struct {
	PackageID    string
	Module       string
	PageSize     int
	PollInterval time.Duration
	Exchange     string
	RoutingKey   string
}

// Reconciler runs the FETCH -> PARSE -> APPLY -> SLEEP cycle until its
// context is cancelled. It is single-flight by construction: there is exactly
// one instance per process and it never issues overlapping fetches.
type Reconciler struct {
	source   EventSource
	repo     ReconcilerStore
	producer rabbitmq.Publisher
	cfg      ReconcilerConfig

	cursor *suiclient.EventID
}

// NewReconciler wires a reconciliation loop. The producer may be nil; paid
// events are then only logged.
func NewReconciler(source EventSource, repo ReconcilerStore, producer rabbitmq.Publisher, cfg ReconcilerConfig) *Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Reconciler{
		source:   source,
		repo:     repo,
		producer: producer,
		cfg:      cfg,
	}
}

// Run executes the loop for the lifetime of ctx. Shutdown is cooperative: a
// cycle in flight finishes its APPLY phase before the loop exits, so a page is
// never left half-applied by an orderly stop.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("level=info component=reconciler msg=\"starting\" package=%s module=%s interval=%s page_size=%d",
		r.cfg.PackageID, r.cfg.Module, r.cfg.PollInterval, r.cfg.PageSize)

	r.restoreCursor(ctx)

	for {
		r.runCycle(ctx)

		select {
		case <-ctx.Done():
			log.Printf("level=info component=reconciler msg=\"stopping\" package=%s module=%s", r.cfg.PackageID, r.cfg.Module)
			return
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// restoreCursor loads the persisted resume point, if any. Starting with no
// cursor replays the stream from its beginning, which the idempotent sink
// absorbs; starting from "latest" would silently drop history, so that is
// never done.
func (r *Reconciler) restoreCursor(ctx context.Context) {
	cursor, err := r.repo.LoadEventCursor(ctx, r.cfg.PackageID, r.cfg.Module)
	if err != nil {
		if !errors.Is(err, store.ErrCursorNotFound) {
			log.Printf("level=warn component=reconciler msg=\"cursor load failed; starting from stream beginning\" err=%v", err)
		}
		return
	}
	r.cursor = &suiclient.EventID{TxDigest: cursor.TxDigest, EventSeq: cursor.EventSeq}
	log.Printf("level=info component=reconciler msg=\"cursor restored\" tx_digest=%s event_seq=%s", cursor.TxDigest, cursor.EventSeq)
}

// runCycle performs one FETCH -> PARSE -> APPLY pass. Any failure is local to
// the cycle: a fetch error skips straight to the sleep, a parse error drops
// one record, an apply error drops one update. Nothing here can stop the loop.
func (r *Reconciler) runCycle(ctx context.Context) {
	filter := suiclient.EventFilter{
		MoveModule: suiclient.MoveModuleFilter{
			Package: r.cfg.PackageID,
			Module:  r.cfg.Module,
		},
	}

	// Ascending order keeps cursor advancement monotonic and guarantees no
	// event can fall outside the fetched window between polls.
	page, err := r.source.QueryEvents(ctx, filter, r.cursor, r.cfg.PageSize, false)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"event fetch failed; will retry next cycle\" err=%v", err)
		return
	}

	for _, raw := range page.Data {
		event, parseErr := ParsePaymentEvent(raw)
		if parseErr != nil {
			log.Printf("level=warn component=reconciler msg=\"skipping undecodable event\" tx_digest=%s event_seq=%s err=%v",
				raw.ID.TxDigest, raw.ID.EventSeq, parseErr)
			continue
		}
		r.applyEvent(ctx, event)
	}

	// The cursor advances only after the whole page has been applied. A crash
	// before this point reprocesses the page, which the conditional update
	// makes a no-op.
	if page.NextCursor != nil {
		next := *page.NextCursor
		if err := r.repo.SaveEventCursor(ctx, r.cfg.PackageID, r.cfg.Module, domain.EventCursor{
			TxDigest: next.TxDigest,
			EventSeq: next.EventSeq,
		}); err != nil {
			log.Printf("level=warn component=reconciler msg=\"cursor persist failed; page may replay after restart\" err=%v", err)
		}
		r.cursor = &next
	}
}

// applyEvent issues the single conditional update for one payment event.
// Zero rows affected is benign: the order may not exist, may belong to a
// different deployment, or may already be PAID from a prior delivery of the
// same event.
func (r *Reconciler) applyEvent(ctx context.Context, event *domain.PaymentEvent) {
	rows, err := r.repo.MarkOrderPaidIfPending(ctx, event.RefID)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"order update failed\" order_id=%s tx_digest=%s err=%v",
			event.RefID, event.TxDigest, err)
		return
	}
	if rows == 0 {
		return
	}

	log.Printf("level=info component=reconciler msg=\"order reconciled to PAID\" order_id=%s tx_digest=%s", event.RefID, event.TxDigest)
	r.publishOrderPaid(ctx, event)
}

func (r *Reconciler) publishOrderPaid(ctx context.Context, event *domain.PaymentEvent) {
	if r.producer == nil {
		return
	}

	order, err := r.repo.FindOrderByID(ctx, event.RefID)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"paid order lookup failed; event not published\" order_id=%s err=%v", event.RefID, err)
		return
	}

	payload := rabbitmq.OrderPaidEvent{
		OrderID:         order.ID,
		MerchantAddress: order.MerchantAddress,
		Amount:          order.Amount,
		Currency:        order.Currency,
		TxDigest:        event.TxDigest,
		Timestamp:       time.Now().UTC(),
	}
	if err := r.producer.Publish(ctx, r.cfg.Exchange, r.cfg.RoutingKey, payload); err != nil {
		log.Printf("level=warn component=reconciler msg=\"order paid event publish failed\" order_id=%s err=%v", order.ID, err)
	}
}
