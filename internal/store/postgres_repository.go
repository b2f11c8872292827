/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL queries for orders, employees, identity
 * salts, the reconciler cursor, and the rebalance audit log.
 *
 * @notes
 * - Order status transitions go through a single conditional UPDATE guarded on
 *   the current status. There is no read-then-write anywhere in this file, so
 *   concurrent appliers and redelivered events are safe without locks.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/suipay/payment-service/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrCursorNotFound = errors.New("event cursor not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the tables the service owns if they do not exist yet.
// Every statement is idempotent, so running it on each boot is safe.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			merchant_address TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USDC',
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_merchant_status ON orders (merchant_address, status);

		CREATE TABLE IF NOT EXISTS employees (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			wallet_address TEXT NOT NULL,
			salary_amount BIGINT NOT NULL,
			role TEXT
		);

		CREATE TABLE IF NOT EXISTS identity_salts (
			identity_key TEXT PRIMARY KEY,
			salt TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS indexer_cursors (
			package_id TEXT NOT NULL,
			module TEXT NOT NULL,
			tx_digest TEXT NOT NULL,
			event_seq TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (package_id, module)
		);

		CREATE TABLE IF NOT EXISTS rebalance_audit (
			id UUID PRIMARY KEY,
			merchant_address TEXT NOT NULL,
			tx_digest TEXT NOT NULL,
			from_coin TEXT NOT NULL,
			to_coin TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// CreateOrder inserts a new order with status PENDING.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, merchant_address, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		order.ID,
		order.MerchantAddress,
		order.Amount,
		order.Currency,
		domain.OrderStatusPending,
	).Scan(&order.CreatedAt)
}

// FindOrderByID retrieves an order by its id.
func (r *PostgresRepository) FindOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT id, merchant_address, amount, currency, status, created_at FROM orders WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.MerchantAddress,
		&order.Amount,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkOrderPaidIfPending transitions an order to PAID only if it is still
// PENDING, and reports how many rows changed. Zero rows is not an error: the
// order may not exist, or it may already be PAID from a prior delivery of the
// same event. The caller decides what zero means.
func (r *PostgresRepository) MarkOrderPaidIfPending(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		domain.OrderStatusPaid, id, domain.OrderStatusPending,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountStalePendingOrders returns how many orders have been PENDING for longer
// than the given duration. Used by the operational report job.
func (r *PostgresRepository) CountStalePendingOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM orders WHERE status = $1 AND created_at < NOW() - ($2 * INTERVAL '1 second')`
	err := r.db.QueryRow(ctx, query, domain.OrderStatusPending, int64(olderThan.Seconds())).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreateEmployee inserts a payroll record and fills in the generated id.
func (r *PostgresRepository) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (name, wallet_address, salary_amount, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		employee.Name,
		employee.WalletAddress,
		employee.SalaryAmount,
		employee.Role,
	).Scan(&employee.ID)
}

// FindEmployees lists all payroll records.
func (r *PostgresRepository) FindEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, wallet_address, salary_amount, role FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []domain.Employee
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.WalletAddress, &e.SalaryAmount, &e.Role); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// GetMerchantSummary aggregates paid revenue and order count for one merchant
// plus the total employee headcount.
func (r *PostgresRepository) GetMerchantSummary(ctx context.Context, merchantAddress string) (*domain.MerchantSummary, error) {
	var summary domain.MerchantSummary
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)::BIGINT
		FROM orders
		WHERE merchant_address = $1 AND status = $2
	`
	if err := r.db.QueryRow(ctx, query, merchantAddress, domain.OrderStatusPaid).Scan(&summary.OrderCount, &summary.TotalRevenue); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&summary.EmployeeCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetOrCreateIdentitySalt returns the persisted salt for an external identity,
// creating it exactly once. The insert-then-select pair is race-safe: on
// conflict the insert is a no-op and both racers read the same winning salt,
// so the same external identity always derives the same address.
func (r *PostgresRepository) GetOrCreateIdentitySalt(ctx context.Context, identityKey string) (string, error) {
	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	candidate := hex.EncodeToString(saltBytes)

	_, err := r.db.Exec(ctx,
		`INSERT INTO identity_salts (identity_key, salt) VALUES ($1, $2) ON CONFLICT (identity_key) DO NOTHING`,
		identityKey, candidate,
	)
	if err != nil {
		return "", err
	}

	var salt string
	err = r.db.QueryRow(ctx, `SELECT salt FROM identity_salts WHERE identity_key = $1`, identityKey).Scan(&salt)
	if err != nil {
		return "", err
	}
	return salt, nil
}

// LoadEventCursor returns the persisted resume point for one event filter, or
// ErrCursorNotFound if the reconciler has never completed a page for it.
func (r *PostgresRepository) LoadEventCursor(ctx context.Context, packageID, module string) (*domain.EventCursor, error) {
	var cursor domain.EventCursor
	query := `SELECT tx_digest, event_seq FROM indexer_cursors WHERE package_id = $1 AND module = $2`
	err := r.db.QueryRow(ctx, query, packageID, module).Scan(&cursor.TxDigest, &cursor.EventSeq)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCursorNotFound
		}
		return nil, err
	}
	return &cursor, nil
}

// SaveEventCursor upserts the resume point for one event filter. Called only
// after a whole page has been applied, so a crash mid-page replays the page
// instead of skipping it.
func (r *PostgresRepository) SaveEventCursor(ctx context.Context, packageID, module string, cursor domain.EventCursor) error {
	query := `
		INSERT INTO indexer_cursors (package_id, module, tx_digest, event_seq, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (package_id, module)
		DO UPDATE SET tx_digest = EXCLUDED.tx_digest, event_seq = EXCLUDED.event_seq, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, packageID, module, cursor.TxDigest, cursor.EventSeq)
	return err
}

// CreateRebalanceAudit persists one treasury rebalance record.
func (r *PostgresRepository) CreateRebalanceAudit(ctx context.Context, audit *domain.RebalanceAudit) error {
	query := `
		INSERT INTO rebalance_audit (id, merchant_address, tx_digest, from_coin, to_coin, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING recorded_at
	`
	return r.db.QueryRow(ctx, query,
		audit.ID,
		audit.MerchantAddress,
		audit.TxDigest,
		audit.FromCoin,
		audit.ToCoin,
		audit.Amount,
	).Scan(&audit.RecordedAt)
}
