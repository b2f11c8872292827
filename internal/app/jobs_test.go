package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/suipay/payment-service/internal/domain"
)

func TestJobs_ReportStalePendingOrders(t *testing.T) {
	repo := newFakeRepository()
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

	// The report is purely observational; it must not mutate order state.
	jobs := NewJobs(repo, time.Hour)
	jobs.ReportStalePendingOrders()

	got, err := repo.FindOrderByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("FindOrderByID returned error: %v", err)
	}
	if got.Status != domain.OrderStatusPending {
		t.Fatalf("expected report not to touch order status, got %s", got.Status)
	}
}

func TestRedisLoginRateLimiter_NilLimiterDisablesLimiting(t *testing.T) {
	var limiter *RedisLoginRateLimiter

	count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), "login", "0xabc", 30, time.Minute)
	if err != nil {
		t.Fatalf("expected nil limiter to be a no-op, got error: %v", err)
	}
	if count != 0 || retryAfter != 0 {
		t.Fatalf("expected zero count from a disabled limiter, got count=%d retryAfter=%d", count, retryAfter)
	}
}

func TestRedisLoginRateLimiter_SkipsBlankSubjects(t *testing.T) {
	limiter := NewRedisLoginRateLimiter(nil, "suipay:rate_limit")

	count, _, err := limiter.ConsumeRateLimit(context.Background(), "login", "   ", 30, time.Minute)
	if err != nil {
		t.Fatalf("expected blank subject to be a no-op, got error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero count for a blank subject, got %d", count)
	}
}
