package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/app"
	"github.com/suipay/payment-service/internal/auth"
	"github.com/suipay/payment-service/internal/domain"
	"github.com/suipay/payment-service/internal/store"
)

// memoryRepository is an in-memory store.Repository for exercising the full
// router against a real service.
type memoryRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
	salts  map[string]string

	employees []domain.Employee
	audits    []domain.RebalanceAudit
	cursor    *domain.EventCursor
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		orders: make(map[uuid.UUID]*domain.Order),
		salts:  make(map[string]string),
	}
}

func (m *memoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *order
	copied.CreatedAt = time.Now().UTC()
	m.orders[order.ID] = &copied
	return nil
}

func (m *memoryRepository) FindOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memoryRepository) MarkOrderPaidIfPending(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != domain.OrderStatusPending {
		return 0, nil
	}
	order.Status = domain.OrderStatusPaid
	return 1, nil
}

func (m *memoryRepository) CountStalePendingOrders(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (m *memoryRepository) CreateEmployee(_ context.Context, employee *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee.ID = int32(len(m.employees) + 1)
	m.employees = append(m.employees, *employee)
	return nil
}

func (m *memoryRepository) FindEmployees(_ context.Context) ([]domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Employee(nil), m.employees...), nil
}

func (m *memoryRepository) GetMerchantSummary(_ context.Context, merchantAddress string) (*domain.MerchantSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &domain.MerchantSummary{EmployeeCount: int64(len(m.employees))}
	for _, order := range m.orders {
		if order.MerchantAddress == merchantAddress && order.Status == domain.OrderStatusPaid {
			summary.TotalRevenue += order.Amount
			summary.OrderCount++
		}
	}
	return summary, nil
}

func (m *memoryRepository) GetOrCreateIdentitySalt(_ context.Context, identityKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if salt, ok := m.salts[identityKey]; ok {
		return salt, nil
	}
	salt := fmt.Sprintf("salt-%d", len(m.salts)+1)
	m.salts[identityKey] = salt
	return salt, nil
}

func (m *memoryRepository) LoadEventCursor(_ context.Context, _, _ string) (*domain.EventCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor == nil {
		return nil, store.ErrCursorNotFound
	}
	copied := *m.cursor
	return &copied, nil
}

func (m *memoryRepository) SaveEventCursor(_ context.Context, _, _ string, cursor domain.EventCursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = &cursor
	return nil
}

func (m *memoryRepository) CreateRebalanceAudit(_ context.Context, audit *domain.RebalanceAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	audit.RecordedAt = time.Now().UTC()
	m.audits = append(m.audits, *audit)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *memoryRepository, *auth.TokenService) {
	t.Helper()
	repo := newMemoryRepository()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	service := app.NewService(repo, tokens, auth.NewZkIdentityDeriver(repo))
	handlers := NewHandlers(service, nil, 0)
	return Routes(handlers, tokens), repo, tokens
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	router, _, tokens := newTestRouter(t)
	token, err := tokens.Issue("0xmerchant")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	rec := doJSON(t, router, "POST", "/orders", token, map[string]any{"amount": 1000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if order.MerchantAddress != "0xmerchant" {
		t.Fatalf("expected order owned by the token subject, got %q", order.MerchantAddress)
	}
	if order.Status != domain.OrderStatusPending || order.Currency != domain.DefaultCurrency {
		t.Fatalf("expected PENDING USDC order, got %+v", order)
	}
}

func TestCreateOrderEndpoint_Validation(t *testing.T) {
	router, _, tokens := newTestRouter(t)
	token, err := tokens.Issue("0xmerchant")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	tests := []struct {
		name    string
		payload any
	}{
		{name: "zero amount", payload: map[string]any{"amount": 0}},
		{name: "negative amount", payload: map[string]any{"amount": -5}},
		{name: "missing amount", payload: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/orders", token, tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if body := decodeErrorResponse(t, rec); body.Code != "invalid_request" {
				t.Fatalf("expected code invalid_request, got %q", body.Code)
			}
		})
	}
}

func TestCreateOrderEndpoint_RequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/orders", "", map[string]any{"amount": 1000})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing credentials, got %d", rec.Code)
	}
	if body := decodeErrorResponse(t, rec); body.Code != "missing_credentials" {
		t.Fatalf("expected code missing_credentials, got %q", body.Code)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	order := &domain.Order{
		ID:              uuid.New(),
		MerchantAddress: "0xmerchant",
		Amount:          1000,
		Currency:        "USDC",
		Status:          domain.OrderStatusPending,
	}
	if err := repo.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	// Lookup is public and needs no token.
	rec := doJSON(t, router, "GET", "/orders/"+order.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if got.ID != order.ID || got.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order payload: %+v", got)
	}

	rec = doJSON(t, router, "GET", "/orders/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/orders/not-a-uuid", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", rec.Code)
	}
}

func TestWalletLoginEndpoint_RejectsBadSignature(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/auth/login", "", map[string]string{
		"address":   "0x" + fmt.Sprintf("%064d", 1),
		"signature": "AAAA",
		"message":   "Login to SuiPay",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeErrorResponse(t, rec); body.Code != "invalid_token" {
		t.Fatalf("expected code invalid_token, got %q", body.Code)
	}
}

func TestZkLoginEndpoint(t *testing.T) {
	router, _, tokens := newTestRouter(t)

	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "https://accounts.google.com",
		Audience:  jwt.ClaimStrings{"suipay-client"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	if err != nil {
		t.Fatalf("failed to build assertion: %v", err)
	}

	rec := doJSON(t, router, "POST", "/auth/zklogin/verify", "", map[string]string{"jwt": assertion})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if len(resp.SuiAddress) != 2+64 || resp.SuiAddress[:2] != "0x" {
		t.Fatalf("expected a derived 0x address, got %q", resp.SuiAddress)
	}
	if claims, err := tokens.Verify(resp.Token); err != nil || claims.Subject != resp.SuiAddress {
		t.Fatalf("expected a verifiable token for the derived address, err=%v", err)
	}

	rec = doJSON(t, router, "POST", "/auth/zklogin/verify", "", map[string]string{"jwt": "garbage"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed assertion, got %d", rec.Code)
	}
	if body := decodeErrorResponse(t, rec); body.Code != "zk_login_error" {
		t.Fatalf("expected code zk_login_error, got %q", body.Code)
	}
}

func TestEmployeeEndpoints(t *testing.T) {
	router, _, tokens := newTestRouter(t)
	token, err := tokens.Issue("0xmerchant")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// An empty roster serializes as [], not null.
	rec := doJSON(t, router, "GET", "/employees", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", got)
	}

	rec = doJSON(t, router, "POST", "/employees", token, map[string]any{
		"name":           "Ada",
		"wallet_address": "0xada",
		"salary_amount":  9000,
		"role":           "engineer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, "GET", "/employees", token, nil)
	var employees []domain.Employee
	if err := json.NewDecoder(rec.Body).Decode(&employees); err != nil {
		t.Fatalf("failed to decode employees: %v", err)
	}
	if len(employees) != 1 || employees[0].Name != "Ada" {
		t.Fatalf("unexpected roster: %+v", employees)
	}
}

func TestMerchantSummaryEndpoint(t *testing.T) {
	router, repo, tokens := newTestRouter(t)
	token, err := tokens.Issue("0xmerchant")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	order := &domain.Order{
		ID:              uuid.New(),
		MerchantAddress: "0xmerchant",
		Amount:          1500,
		Currency:        "USDC",
		Status:          domain.OrderStatusPending,
	}
	if err := repo.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	if _, err := repo.MarkOrderPaidIfPending(context.Background(), order.ID); err != nil {
		t.Fatalf("MarkOrderPaidIfPending returned error: %v", err)
	}

	rec := doJSON(t, router, "GET", "/merchant/summary", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary domain.MerchantSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.TotalRevenue != 1500 || summary.OrderCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRecordRebalanceEndpoint(t *testing.T) {
	router, repo, tokens := newTestRouter(t)
	token, err := tokens.Issue("0xmerchant")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	rec := doJSON(t, router, "POST", "/merchant/rebalance", token, map[string]any{
		"tx_digest": "9WzSXdtg4Vk2",
		"from_coin": "0x2::sui::SUI",
		"to_coin":   "0xusdc::coin::COIN",
		"amount":    12.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "recorded" || resp["audit_id"] == "" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if len(repo.audits) != 1 || repo.audits[0].MerchantAddress != "0xmerchant" {
		t.Fatalf("expected one audit for the caller, got %+v", repo.audits)
	}
}
