package domain

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a payroll record owned by a merchant. Salaries are stored in the
// smallest currency unit, like order amounts.
type Employee struct {
	ID            int32   `json:"id"`
	Name          string  `json:"name"`
	WalletAddress string  `json:"wallet_address"`
	SalaryAmount  int64   `json:"salary_amount"`
	Role          *string `json:"role,omitempty"`
}

// CreateEmployeeRequest is the DTO for adding an employee.
type CreateEmployeeRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=128"`
	WalletAddress string `json:"wallet_address" validate:"required,min=3,max=128"`
	SalaryAmount  int64  `json:"salary_amount" validate:"required,gt=0"`
	Role          string `json:"role" validate:"max=64"`
}

// MerchantSummary aggregates a merchant's paid revenue and headcount.
type MerchantSummary struct {
	TotalRevenue  int64 `json:"total_revenue"`
	OrderCount    int64 `json:"order_count"`
	EmployeeCount int64 `json:"employee_count"`
}

// RebalanceRequest is the DTO for recording a treasury rebalance swap.
type RebalanceRequest struct {
	TxDigest string  `json:"tx_digest" validate:"required,min=8,max=128"`
	FromCoin string  `json:"from_coin" validate:"required,min=2,max=64"`
	ToCoin   string  `json:"to_coin" validate:"required,min=2,max=64"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
}

// RebalanceAudit is the persisted audit record of a treasury rebalance.
type RebalanceAudit struct {
	ID              uuid.UUID `json:"audit_id"`
	MerchantAddress string    `json:"merchant_address"`
	TxDigest        string    `json:"tx_digest"`
	FromCoin        string    `json:"from_coin"`
	ToCoin          string    `json:"to_coin"`
	Amount          float64   `json:"amount"`
	RecordedAt      time.Time `json:"recorded_at"`
}
