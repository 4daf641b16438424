package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/voyago/travelcore/internal/db"
	"github.com/voyago/travelcore/internal/ledger"
	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedPolicy(t *testing.T, conn *gorm.DB, policy models.RateLimitPolicy) {
	t.Helper()
	if errCreate := conn.Create(&policy).Error; errCreate != nil {
		t.Fatalf("seed policy: %v", errCreate)
	}
}

func seedCalls(t *testing.T, lgr *ledger.Ledger, serviceName string, times ...time.Time) {
	t.Helper()
	for _, at := range times {
		if _, errRecord := lgr.Record(context.Background(), ledger.RecordParams{
			ServiceName: serviceName,
			RequestTime: at,
		}); errRecord != nil {
			t.Fatalf("seed call: %v", errRecord)
		}
	}
}

func repeatTimes(at time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = at
	}
	return out
}

func TestCheckNoPolicyDefaultAllow(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	governor := NewGovernor(conn, lgr, nil)

	decision, errCheck := governor.Check(context.Background(), "unknown-service")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !decision.Allowed || decision.CooldownMs != 0 || decision.Reason != ReasonNoPolicy {
		t.Fatalf("expected permissive default, got %+v", decision)
	}
}

func TestCheckMinuteLimit(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	governor := NewGovernor(conn, lgr, func() time.Time { return now })

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:       "svc",
		RequestsPerMinute: 5,
		RequestsPerHour:   1000,
		RequestsPerDay:    10000,
		CooldownPeriodMs:  1000,
	})
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-10*time.Second), 5)...)

	decision, errCheck := governor.Check(context.Background(), "svc")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if decision.Allowed {
		t.Fatalf("expected denial at minute quota")
	}
	if decision.CooldownMs != 1000 || decision.Reason != ReasonMinuteExceeded {
		t.Fatalf("expected minute cooldown x1, got %+v", decision)
	}
}

func TestCheckAgedEntryLeavesWindow(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	governor := NewGovernor(conn, lgr, func() time.Time { return now })

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:       "svc",
		RequestsPerMinute: 5,
		RequestsPerHour:   1000,
		RequestsPerDay:    10000,
		CooldownPeriodMs:  1000,
	})
	// 4 inside the window, 1 aged to 61s.
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-10*time.Second), 4)...)
	seedCalls(t, lgr, "svc", now.Add(-61*time.Second))

	decision, errCheck := governor.Check(context.Background(), "svc")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !decision.Allowed || decision.Reason != ReasonAllowed {
		t.Fatalf("expected allow with 4 in window, got %+v", decision)
	}
	if decision.CooldownMs != 0 {
		t.Fatalf("expected no cooldown, got %d", decision.CooldownMs)
	}
}

func TestCheckHourLimitEscalatedCooldown(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	governor := NewGovernor(conn, lgr, func() time.Time { return now })

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:       "svc",
		RequestsPerMinute: 100,
		RequestsPerHour:   10,
		RequestsPerDay:    10000,
		CooldownPeriodMs:  2000,
	})
	// All calls outside the minute window but inside the hour.
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-10*time.Minute), 10)...)

	decision, errCheck := governor.Check(context.Background(), "svc")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if decision.Allowed || decision.Reason != ReasonHourExceeded {
		t.Fatalf("expected hour denial, got %+v", decision)
	}
	if decision.CooldownMs != 2000*5 {
		t.Fatalf("expected cooldown x5, got %d", decision.CooldownMs)
	}
}

func TestCheckDayLimitEscalatedCooldown(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	governor := NewGovernor(conn, lgr, func() time.Time { return now })

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:       "svc",
		RequestsPerMinute: 100,
		RequestsPerHour:   1000,
		RequestsPerDay:    8,
		CooldownPeriodMs:  3000,
	})
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-5*time.Hour), 8)...)

	decision, errCheck := governor.Check(context.Background(), "svc")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if decision.Allowed || decision.Reason != ReasonDayExceeded {
		t.Fatalf("expected day denial, got %+v", decision)
	}
	if decision.CooldownMs != 3000*20 {
		t.Fatalf("expected cooldown x20, got %d", decision.CooldownMs)
	}
}

func TestCheckMinuteBreachWinsOverHour(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	governor := NewGovernor(conn, lgr, func() time.Time { return now })

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:       "svc",
		RequestsPerMinute: 5,
		RequestsPerHour:   10,
		RequestsPerDay:    10000,
		CooldownPeriodMs:  1000,
	})
	// Saturate both the minute and hour windows at once.
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-10*time.Second), 6)...)
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-30*time.Minute), 6)...)

	decision, errCheck := governor.Check(context.Background(), "svc")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if decision.Reason != ReasonMinuteExceeded {
		t.Fatalf("expected minute breach reported first, got %+v", decision)
	}
	if decision.CooldownMs != 1000 {
		t.Fatalf("expected base cooldown x1, got %d", decision.CooldownMs)
	}
}

func TestCheckCountsPendingCalls(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	governor := NewGovernor(conn, lgr, func() time.Time { return now })

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:       "svc",
		RequestsPerMinute: 2,
		RequestsPerHour:   1000,
		RequestsPerDay:    10000,
		CooldownPeriodMs:  1000,
	})
	// Two concurrent in-flight calls, neither finalized yet.
	seedCalls(t, lgr, "svc", repeatTimes(now.Add(-time.Second), 2)...)

	decision, errCheck := governor.Check(context.Background(), "svc")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if decision.Allowed {
		t.Fatalf("expected in-flight burst to be throttled, got %+v", decision)
	}
}

func TestRetryPolicy(t *testing.T) {
	conn := newTestDB(t)
	lgr := ledger.NewLedger(conn)
	governor := NewGovernor(conn, lgr, nil)

	seedPolicy(t, conn, models.RateLimitPolicy{
		ServiceName:        "svc",
		RetryBackoffFactor: 2.5,
		MaxRetries:         4,
	})

	policy, errPolicy := governor.RetryPolicy(context.Background(), "svc")
	if errPolicy != nil {
		t.Fatalf("retry policy: %v", errPolicy)
	}
	if policy.RetryBackoffFactor != 2.5 || policy.MaxRetries != 4 {
		t.Fatalf("unexpected retry policy: %+v", policy)
	}

	missing, errMissing := governor.RetryPolicy(context.Background(), "unknown")
	if errMissing != nil {
		t.Fatalf("retry policy missing: %v", errMissing)
	}
	if missing.MaxRetries != 0 || missing.RetryBackoffFactor != 0 {
		t.Fatalf("expected zero policy for unknown service, got %+v", missing)
	}
}
