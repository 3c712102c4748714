//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/usecase"
)

// fastPolicy keeps retry backoff in the microsecond range so transient-path
// tests finish immediately.
func fastPolicy() usecase.BillingPolicy {
	return usecase.BillingPolicy{
		PastDueThreshold: 3,
		AutoCancelAfter:  14 * 24 * time.Hour,
		MaxAttempts:      3,
		BaseBackoff:      time.Millisecond,
		MaxBackoff:       2 * time.Millisecond,
		BatchSize:        100,
	}
}

type billingDeps struct {
	subs     *MockSubscriptionRepo
	payments *MockPaymentRepo
	plans    *MockPlanRepo
	ledger   *MockLedger
	gateway  *MockGateway
	notifier *MockNotifier
	tm       *MockTxManager
}

func newBillingDeps() *billingDeps {
	return &billingDeps{
		subs:     NewMockSubscriptionRepo(),
		payments: NewMockPaymentRepo(),
		plans:    NewMockPlanRepo(),
		ledger:   NewMockLedger(),
		gateway:  &MockGateway{NameValue: "mockpay"},
		notifier: &MockNotifier{},
		tm:       NewMockTxManager(),
	}
}

func (d *billingDeps) uc(policy usecase.BillingPolicy) usecase.BillingUseCase {
	return usecase.NewBillingUseCase(
		d.subs, d.payments, d.plans, d.ledger,
		NewMockRegistry(d.gateway), d.notifier, d.tm, policy, newTestLogger(),
	)
}

// dueSubscription seeds a plan plus an active subscription whose billing date
// is already in the past.
func (d *billingDeps) dueSubscription(t *testing.T, id, userID string) *model.Subscription {
	t.Helper()
	plan := &model.Plan{ID: "plan-sub", Name: "Monthly", Kind: model.PlanKindSubscription, PriceKRW: 29_000, TokenGrant: 5_000, BillingCycleDays: 30}
	d.plans.Put(plan)
	sub, err := model.NewSubscription(id, userID, plan, "mockpay", "bk-"+id)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	sub.NextBillingDate = time.Now().Add(-time.Hour)
	if err := d.subs.Save(context.Background(), nil, sub); err != nil {
		t.Fatalf("save subscription: %v", err)
	}
	return sub
}

func terminalDecline() error {
	return &domain.GatewayError{Provider: "mockpay", Transient: false, Code: "F112", Message: "insufficient funds"}
}

func transientOutage() error {
	return &domain.GatewayError{Provider: "mockpay", Transient: true, Code: "", Message: "upstream timeout"}
}

func TestBillingUseCase_ChargeSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("successful charge advances exactly one cycle", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-1", "user-1")
		sub.FailureCount = 1
		wantNext := sub.NextBillingDate.AddDate(0, 0, 30)

		if err := deps.uc(fastPolicy()).ChargeSubscription(ctx, sub, time.Now()); err != nil {
			t.Fatalf("charge: %v", err)
		}

		stored := deps.subs.Get("sub-1")
		if !stored.NextBillingDate.Equal(wantNext) {
			t.Errorf("billing date must advance from the old date, not from now: got %v want %v",
				stored.NextBillingDate, wantNext)
		}
		if stored.FailureCount != 0 {
			t.Errorf("success must clear the failure counter, got %d", stored.FailureCount)
		}
		if deps.payments.Count() != 1 {
			t.Errorf("expected one ledger row, got %d", deps.payments.Count())
		}
		if bal, _ := deps.ledger.Balance(ctx, nil, "user-1"); bal != 5_000 {
			t.Errorf("expected cycle grant 5000 credited, got %d", bal)
		}
	})

	t.Run("terminal decline fails fast without retry", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-1", "user-1")
		before := sub.NextBillingDate
		deps.gateway.ScheduleRecurringFunc = func(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
			return nil, terminalDecline()
		}

		err := deps.uc(fastPolicy()).ChargeSubscription(ctx, sub, time.Now())
		if !domain.IsTerminalGatewayError(err) {
			t.Fatalf("expected terminal gateway error, got %v", err)
		}
		if deps.gateway.Calls.Recurring != 1 {
			t.Errorf("terminal decline must not retry, got %d attempts", deps.gateway.Calls.Recurring)
		}
		stored := deps.subs.Get("sub-1")
		if stored.FailureCount != 1 {
			t.Errorf("expected failure counter 1, got %d", stored.FailureCount)
		}
		if !stored.NextBillingDate.Equal(before) {
			t.Errorf("failed charge must not advance the billing date")
		}
		if deps.payments.Count() != 0 {
			t.Errorf("failed charge must not create a ledger row")
		}
	})

	t.Run("transient outage retries and then succeeds", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-1", "user-1")
		attempts := 0
		deps.gateway.ScheduleRecurringFunc = func(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
			attempts++
			if attempts < 3 {
				return nil, transientOutage()
			}
			return &adapter.ChargeResult{ExternalID: "ext-" + merchantUID, Amount: amount, PaidAt: whenUTC}, nil
		}

		if err := deps.uc(fastPolicy()).ChargeSubscription(ctx, sub, time.Now()); err != nil {
			t.Fatalf("charge: %v", err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
		if deps.subs.Get("sub-1").FailureCount != 0 {
			t.Errorf("eventual success must not record a failure")
		}
	})

	t.Run("transient outage exhausts attempts and records one failure", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-1", "user-1")
		deps.gateway.ScheduleRecurringFunc = func(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
			return nil, transientOutage()
		}

		err := deps.uc(fastPolicy()).ChargeSubscription(ctx, sub, time.Now())
		if err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if deps.gateway.Calls.Recurring != 3 {
			t.Errorf("expected 3 attempts before giving up, got %d", deps.gateway.Calls.Recurring)
		}
		if deps.subs.Get("sub-1").FailureCount != 1 {
			t.Errorf("exhausted retries count as one failure, got %d", deps.subs.Get("sub-1").FailureCount)
		}
	})

	t.Run("window already charged is skipped without a gateway call", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-1", "user-1")

		// A previous (crashed) sweep already booked this window.
		paidAt := time.Now()
		prev, err := model.NewPayment("pay-prev", "pn-prev", "ext-prev", "sub-m-prev",
			"user-1", "plan-sub", "mockpay", 29_000, 5_000, model.PaymentStatusSuccess, &paidAt)
		if err != nil {
			t.Fatalf("new payment: %v", err)
		}
		prev.SubscriptionID = &sub.ID
		if err := deps.payments.Save(ctx, nil, prev); err != nil {
			t.Fatalf("seed payment: %v", err)
		}

		err = deps.uc(fastPolicy()).ChargeSubscription(ctx, sub, time.Now())
		if err == nil {
			t.Fatal("expected the idempotence guard to report a skip")
		}
		if deps.gateway.Calls.Recurring != 0 {
			t.Errorf("guarded charge must not reach the gateway, got %d calls", deps.gateway.Calls.Recurring)
		}
		if deps.payments.Count() != 1 {
			t.Errorf("expected no second ledger row, got %d", deps.payments.Count())
		}
	})

	t.Run("threshold failure moves to past_due and notifies once", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-1", "user-1")
		sub.FailureCount = 2 // next failure hits the threshold of 3
		if err := deps.subs.Save(ctx, nil, sub); err != nil {
			t.Fatalf("save: %v", err)
		}
		deps.gateway.ScheduleRecurringFunc = func(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
			return nil, terminalDecline()
		}

		if err := deps.uc(fastPolicy()).ChargeSubscription(ctx, sub, time.Now()); err == nil {
			t.Fatal("expected charge failure")
		}
		stored := deps.subs.Get("sub-1")
		if stored.Status != model.SubscriptionStatusPastDue {
			t.Fatalf("expected past_due at threshold, got %s", stored.Status)
		}
		var pastDueNotes int
		for _, s := range deps.notifier.Sent {
			if s.Kind == adapter.NotifySubscriptionPastDue {
				pastDueNotes++
			}
		}
		if pastDueNotes != 1 {
			t.Errorf("expected one past_due notification, got %d", pastDueNotes)
		}
	})
}

func TestBillingUseCase_RunSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("one failing subscription never aborts the sweep", func(t *testing.T) {
		deps := newBillingDeps()
		deps.dueSubscription(t, "sub-ok", "user-1")
		deps.dueSubscription(t, "sub-bad", "user-2")
		deps.gateway.ScheduleRecurringFunc = func(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
			if billingKey == "bk-sub-bad" {
				return nil, terminalDecline()
			}
			return &adapter.ChargeResult{ExternalID: "ext-" + merchantUID, Amount: amount, PaidAt: whenUTC}, nil
		}

		report, err := deps.uc(fastPolicy()).RunSweep(ctx, time.Now())
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if report.Due != 2 || report.Charged != 1 || report.Failed != 1 {
			t.Errorf("unexpected report: %+v", report)
		}
		if deps.subs.Get("sub-ok").FailureCount != 0 {
			t.Errorf("healthy subscription polluted by neighbor failure")
		}
		if deps.subs.Get("sub-bad").FailureCount != 1 {
			t.Errorf("expected failure recorded on sub-bad")
		}
	})

	t.Run("stale past_due subscriptions are auto-cancelled", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-stale", "user-1")
		sub.Status = model.SubscriptionStatusPastDue
		sub.UpdatedAt = time.Now().Add(-15 * 24 * time.Hour)
		if err := deps.subs.Save(ctx, nil, sub); err != nil {
			t.Fatalf("save: %v", err)
		}

		report, err := deps.uc(fastPolicy()).RunSweep(ctx, time.Now())
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if report.Cancelled != 1 {
			t.Errorf("expected one auto-cancel, got %d", report.Cancelled)
		}
		stored := deps.subs.Get("sub-stale")
		if stored.Status != model.SubscriptionStatusCancelled {
			t.Errorf("expected cancelled, got %s", stored.Status)
		}
		if stored.CancelledAt == nil {
			t.Errorf("cancelled_at must be set")
		}
	})

	t.Run("recent past_due survives the auto-cancel pass", func(t *testing.T) {
		deps := newBillingDeps()
		sub := deps.dueSubscription(t, "sub-recent", "user-1")
		sub.Status = model.SubscriptionStatusPastDue
		sub.UpdatedAt = time.Now().Add(-24 * time.Hour)
		if err := deps.subs.Save(ctx, nil, sub); err != nil {
			t.Fatalf("save: %v", err)
		}

		report, err := deps.uc(fastPolicy()).RunSweep(ctx, time.Now())
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if report.Cancelled != 0 {
			t.Errorf("expected no auto-cancel, got %d", report.Cancelled)
		}
		if deps.subs.Get("sub-recent").Status != model.SubscriptionStatusPastDue {
			t.Errorf("recent past_due must be left alone")
		}
	})
}
