/**
 * @description
 * This file defines the core domain models for the payment-service. These
 * structs represent the entities and data transfer objects (DTOs) used across
 * the service's business logic, database layer, and API layer.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit to avoid
 *   floating-point inaccuracies with financial data.
 * - Order status only ever moves PENDING -> PAID; there is no reverse
 *   transition anywhere in the system.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. The transition is one-directional: PENDING -> PAID.
const (
	OrderStatusPending = "PENDING"
	OrderStatusPaid    = "PAID"
)

// DefaultCurrency is applied when an order is created without an explicit currency.
const DefaultCurrency = "USDC"

// Order represents a merchant order awaiting (or having received) an on-chain payment.
// This struct maps directly to the `orders` table in the database.
type Order struct {
	ID              uuid.UUID `json:"id"`
	MerchantAddress string    `json:"merchant_address"`
	Amount          int64     `json:"amount"` // smallest currency unit
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateOrderRequest is the DTO for incoming order creation API requests.
type CreateOrderRequest struct {
	Amount   int64   `json:"amount" validate:"required,gt=0"`
	Currency *string `json:"currency,omitempty" validate:"omitempty,min=2,max=16"`
}

// PaymentEvent is the typed form of one on-chain payment event. It is
// materialized from a single page fetch, applied once, and discarded; it is
// never persisted as its own entity.
type PaymentEvent struct {
	RefID    uuid.UUID // order id the payment references
	TxDigest string    // stream position, kept for logging and cursor context
	EventSeq string
}

// EventCursor is the durable resume point of the reconciliation loop, scoped
// to one (package, module) filter. It survives process restarts so the
// reconciler never silently skips history.
type EventCursor struct {
	TxDigest string
	EventSeq string
}
