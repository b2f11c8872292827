/**
 * @description
 * This file contains the HTTP handlers for the payment-service API. Handlers
 * parse and validate incoming requests, call the application service, and map
 * the outcome (including the auth fault taxonomy) to HTTP responses.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-playground/validator/v10: Request DTO validation.
 * - internal/app, internal/auth, internal/domain, internal/store.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/app"
	"github.com/suipay/payment-service/internal/auth"
	"github.com/suipay/payment-service/internal/domain"
	"github.com/suipay/payment-service/internal/store"
)

// Handlers holds the application service and request-path collaborators.
type Handlers struct {
	service             *app.Service
	limiter             *app.RedisLoginRateLimiter
	loginLimitPerMinute int
	validate            *validator.Validate
}

// NewHandlers creates the handler set. The limiter may be nil, which disables
// login rate limiting.
func NewHandlers(service *app.Service, limiter *app.RedisLoginRateLimiter, loginLimitPerMinute int) *Handlers {
	return &Handlers{
		service:             service,
		limiter:             limiter,
		loginLimitPerMinute: loginLimitPerMinute,
		validate:            validator.New(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// decodeAndValidate reads the JSON body into dst and runs struct validation.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Request failed validation: "+err.Error())
		return false
	}
	return true
}

// consumeLoginRateLimit enforces the per-subject login limit. It fails open:
// a limiter outage must not lock every merchant out.
func (h *Handlers) consumeLoginRateLimit(w http.ResponseWriter, r *http.Request, subject string) bool {
	if h.limiter == nil || h.loginLimitPerMinute <= 0 {
		return true
	}

	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "login", subject, h.loginLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"login rate limiter unavailable; allowing request\" err=%v", err)
		return true
	}
	if count > h.loginLimitPerMinute {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondError(w, http.StatusTooManyRequests, "rate_limited", "Too many login attempts")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WalletLoginHandler handles POST /auth/login: primary authentication by
// wallet signature.
func (h *Handlers) WalletLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.WalletLoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.consumeLoginRateLimit(w, r, req.Address) {
		return
	}

	resp, err := h.service.WalletLogin(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			respondError(w, http.StatusUnauthorized, "invalid_token", "Signature verification failed")
			return
		}
		log.Printf("level=error component=api handler=wallet_login msg=\"login failed\" err=%v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ZkLoginHandler handles POST /auth/zklogin/verify: secondary authentication
// by derived zk-identity.
func (h *Handlers) ZkLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ZkLoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if !h.consumeLoginRateLimit(w, r, clientIP(r)) {
		return
	}

	resp, err := h.service.ZkLogin(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrZkLogin) {
			respondError(w, http.StatusBadRequest, "zk_login_error", "Malformed identity assertion")
			return
		}
		log.Printf("level=error component=api handler=zk_login msg=\"login failed\" err=%v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// CreateOrderHandler handles POST /orders. Requires authentication; the order
// is owned by the verified subject, never a client-supplied address.
func (h *Handlers) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	merchant, ok := GetSubject(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
		return
	}

	var req domain.CreateOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), merchant, req)
	if err != nil {
		log.Printf("level=error component=api handler=create_order msg=\"create failed\" merchant=%s err=%v", merchant, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Could not create order")
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// GetOrderHandler handles GET /orders/{id}. Public: the payment page polls it.
func (h *Handlers) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "Order not found")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "Order not found")
			return
		}
		log.Printf("level=error component=api handler=get_order msg=\"lookup failed\" order_id=%s err=%v", id, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Could not fetch order")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// AddEmployeeHandler handles POST /employees.
func (h *Handlers) AddEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEmployeeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	employee, err := h.service.AddEmployee(r.Context(), req)
	if err != nil {
		log.Printf("level=error component=api handler=add_employee msg=\"create failed\" err=%v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Could not create employee")
		return
	}

	respondJSON(w, http.StatusCreated, employee)
}

// ListEmployeesHandler handles GET /employees.
func (h *Handlers) ListEmployeesHandler(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		log.Printf("level=error component=api handler=list_employees msg=\"list failed\" err=%v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Could not list employees")
		return
	}
	if employees == nil {
		employees = []domain.Employee{}
	}

	respondJSON(w, http.StatusOK, employees)
}

// MerchantSummaryHandler handles GET /merchant/summary.
func (h *Handlers) MerchantSummaryHandler(w http.ResponseWriter, r *http.Request) {
	merchant, ok := GetSubject(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
		return
	}

	summary, err := h.service.MerchantSummary(r.Context(), merchant)
	if err != nil {
		log.Printf("level=error component=api handler=merchant_summary msg=\"aggregate failed\" merchant=%s err=%v", merchant, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Could not build summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// RecordRebalanceHandler handles POST /merchant/rebalance.
func (h *Handlers) RecordRebalanceHandler(w http.ResponseWriter, r *http.Request) {
	merchant, ok := GetSubject(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
		return
	}

	var req domain.RebalanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	audit, err := h.service.RecordRebalance(r.Context(), merchant, req)
	if err != nil {
		log.Printf("level=error component=api handler=record_rebalance msg=\"persist failed\" merchant=%s err=%v", merchant, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Could not record rebalance")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"status":   "recorded",
		"audit_id": audit.ID.String(),
	})
}
