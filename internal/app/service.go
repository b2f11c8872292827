/**
 * @description
 * This file contains the core business logic of the payment-service: both
 * login paths, order creation and lookup, payroll, the merchant summary, and
 * the rebalance audit. Handlers stay thin and delegate here; this layer talks
 * to the repository and the auth components.
 *
 * @dependencies
 * - context, errors, strings: Standard Go libraries.
 * - github.com/google/uuid: Order and audit identifiers.
 * - internal/auth, internal/domain, internal/store.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/auth"
	"github.com/suipay/payment-service/internal/domain"
	"github.com/suipay/payment-service/internal/store"
)

// Service orchestrates the request-path business logic.
type Service struct {
	repo    store.Repository
	tokens  *auth.TokenService
	deriver *auth.ZkIdentityDeriver
}

// NewService creates the application service.
func NewService(repo store.Repository, tokens *auth.TokenService, deriver *auth.ZkIdentityDeriver) *Service {
	return &Service{
		repo:    repo,
		tokens:  tokens,
		deriver: deriver,
	}
}

// WalletLogin verifies the wallet's signature over the login message and, only
// on success, issues a credential asserting the wallet address. An unverified
// address must never become a credential subject.
func (s *Service) WalletLogin(ctx context.Context, req domain.WalletLoginRequest) (*domain.LoginResponse, error) {
	address := strings.TrimSpace(req.Address)
	if err := auth.VerifyPersonalMessageSignature(address, req.Signature, req.Message); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(address)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResponse{Token: token, SuiAddress: address}, nil
}

// ZkLogin derives the stable zk-address for an external identity assertion and
// issues a credential for it. Malformed assertions fail with the zk-login
// fault; salt-store failures surface as storage errors.
func (s *Service) ZkLogin(ctx context.Context, req domain.ZkLoginRequest) (*domain.LoginResponse, error) {
	address, err := s.deriver.DeriveAddress(ctx, req.Assertion)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(address)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResponse{Token: token, SuiAddress: address}, nil
}

// CreateOrder creates a PENDING order owned by the authenticated merchant.
func (s *Service) CreateOrder(ctx context.Context, merchantAddress string, req domain.CreateOrderRequest) (*domain.Order, error) {
	currency := domain.DefaultCurrency
	if req.Currency != nil && strings.TrimSpace(*req.Currency) != "" {
		currency = strings.TrimSpace(*req.Currency)
	}

	order := &domain.Order{
		ID:              uuid.New(),
		MerchantAddress: merchantAddress,
		Amount:          req.Amount,
		Currency:        currency,
		Status:          domain.OrderStatusPending,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// GetOrder looks up an order by id. Lookup is public: the payment page polls
// it without a session.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.FindOrderByID(ctx, id)
}

// AddEmployee creates a payroll record.
func (s *Service) AddEmployee(ctx context.Context, req domain.CreateEmployeeRequest) (*domain.Employee, error) {
	employee := &domain.Employee{
		Name:          strings.TrimSpace(req.Name),
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		SalaryAmount:  req.SalaryAmount,
	}
	if role := strings.TrimSpace(req.Role); role != "" {
		employee.Role = &role
	}
	if err := s.repo.CreateEmployee(ctx, employee); err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	return employee, nil
}

// ListEmployees returns all payroll records.
func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return s.repo.FindEmployees(ctx)
}

// MerchantSummary aggregates the caller's paid revenue and headcount.
func (s *Service) MerchantSummary(ctx context.Context, merchantAddress string) (*domain.MerchantSummary, error) {
	return s.repo.GetMerchantSummary(ctx, merchantAddress)
}

// RecordRebalance persists a treasury rebalance audit entry for the caller.
func (s *Service) RecordRebalance(ctx context.Context, merchantAddress string, req domain.RebalanceRequest) (*domain.RebalanceAudit, error) {
	audit := &domain.RebalanceAudit{
		ID:              uuid.New(),
		MerchantAddress: merchantAddress,
		TxDigest:        strings.TrimSpace(req.TxDigest),
		FromCoin:        strings.TrimSpace(req.FromCoin),
		ToCoin:          strings.TrimSpace(req.ToCoin),
		Amount:          req.Amount,
	}
	if err := s.repo.CreateRebalanceAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("record rebalance: %w", err)
	}
	return audit, nil
}
