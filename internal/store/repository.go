/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the payment-service. Defining an
 * interface decouples the business logic and the reconciliation loop from the
 * PostgreSQL implementation and makes both testable against fakes.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Order methods. MarkOrderPaidIfPending is the only write path available
	// to the reconciliation loop: a single conditional statement whose
	// rows-affected result is the sole idempotence and concurrency guard.
	CreateOrder(ctx context.Context, order *domain.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	MarkOrderPaidIfPending(ctx context.Context, id uuid.UUID) (int64, error)
	CountStalePendingOrders(ctx context.Context, olderThan time.Duration) (int64, error)

	// Employee methods
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
	FindEmployees(ctx context.Context) ([]domain.Employee, error)

	// Merchant summary over the caller's PAID orders
	GetMerchantSummary(ctx context.Context, merchantAddress string) (*domain.MerchantSummary, error)

	// Identity salt methods (zk-address derivation)
	GetOrCreateIdentitySalt(ctx context.Context, identityKey string) (string, error)

	// Reconciler cursor methods, scoped to one (package, module) filter
	LoadEventCursor(ctx context.Context, packageID, module string) (*domain.EventCursor, error)
	SaveEventCursor(ctx context.Context, packageID, module string, cursor domain.EventCursor) error

	// Treasury rebalance audit
	CreateRebalanceAudit(ctx context.Context, audit *domain.RebalanceAudit) error
}
