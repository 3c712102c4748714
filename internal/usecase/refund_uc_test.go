//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/usecase"
)

type refundDeps struct {
	refunds  *MockRefundRepo
	payments *MockPaymentRepo
	subs     *MockSubscriptionRepo
	ledger   *MockLedger
	gateway  *MockGateway
	notifier *MockNotifier
	tm       *MockTxManager
}

func newRefundDeps() *refundDeps {
	return &refundDeps{
		refunds:  NewMockRefundRepo(),
		payments: NewMockPaymentRepo(),
		subs:     NewMockSubscriptionRepo(),
		ledger:   NewMockLedger(),
		gateway:  &MockGateway{NameValue: "mockpay"},
		notifier: &MockNotifier{},
		tm:       NewMockTxManager(),
	}
}

func (d *refundDeps) uc() usecase.RefundUseCase {
	return usecase.NewRefundUseCase(
		d.refunds, d.payments, d.subs, d.ledger,
		NewMockRegistry(d.gateway), d.notifier, d.tm, newTestLogger(),
	)
}

// successPayment seeds a reconciled token purchase and credits its tokens.
func (d *refundDeps) successPayment(t *testing.T, id, userID string, amount, tokens int64) *model.Payment {
	t.Helper()
	paidAt := time.Now()
	p, err := model.NewPayment(id, "pn-"+id, "ext-"+id, "m-"+id,
		userID, "plan-token", "mockpay", amount, tokens, model.PaymentStatusSuccess, &paidAt)
	if err != nil {
		t.Fatalf("new payment: %v", err)
	}
	if err := d.payments.Save(context.Background(), nil, p); err != nil {
		t.Fatalf("save payment: %v", err)
	}
	d.ledger.Set(userID, tokens)
	return p
}

func TestRefundUseCase_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the linked inquiry and pending refund", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)

		inq, ref, err := deps.uc().Request(ctx, "user-1", p.ID, "wrong plan", "bought by mistake")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if ref.InquiryID != inq.ID {
			t.Errorf("refund must link its inquiry")
		}
		if ref.Status != model.RefundStatusPending {
			t.Errorf("expected pending, got %s", ref.Status)
		}
		if ref.Amount != 10_000 {
			t.Errorf("refund amount must mirror the payment, got %d", ref.Amount)
		}
	})

	t.Run("someone else's payment reads as not found", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)

		_, _, err := deps.uc().Request(ctx, "user-2", p.ID, "t", "b")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second open request for the same payment is rejected", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)
		uc := deps.uc()

		if _, _, err := uc.Request(ctx, "user-1", p.ID, "t", "b"); err != nil {
			t.Fatalf("first request: %v", err)
		}
		_, _, err := uc.Request(ctx, "user-1", p.ID, "t2", "b2")
		if !errors.Is(err, domain.ErrRefundExists) {
			t.Errorf("expected ErrRefundExists, got %v", err)
		}
	})

	t.Run("non-success payment is not refundable", func(t *testing.T) {
		deps := newRefundDeps()
		p, err := model.NewPayment("pay-1", "pn-1", "ext-1", "m-1",
			"user-1", "plan-token", "mockpay", 10_000, 1_000, model.PaymentStatusFailed, nil)
		if err != nil {
			t.Fatalf("new payment: %v", err)
		}
		if err := deps.payments.Save(ctx, nil, p); err != nil {
			t.Fatalf("save payment: %v", err)
		}
		_, _, err = deps.uc().Request(ctx, "user-1", p.ID, "t", "b")
		if !errors.Is(err, domain.ErrPaymentNotRefundable) {
			t.Errorf("expected ErrPaymentNotRefundable, got %v", err)
		}
	})
}

func TestRefundUseCase_Approve(t *testing.T) {
	ctx := context.Background()

	pending := func(t *testing.T, deps *refundDeps, p *model.Payment) *model.Refund {
		t.Helper()
		_, ref, err := deps.uc().Request(ctx, p.UserID, p.ID, "refund please", "")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		return ref
	}

	t.Run("approval cancels, debits and closes everything", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)
		ref := pending(t, deps, p)

		got, err := deps.uc().Approve(ctx, "admin-1", ref.ID)
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if got.Status != model.RefundStatusApproved {
			t.Errorf("expected approved, got %s", got.Status)
		}
		if got.ProcessedBy == nil || *got.ProcessedBy != "admin-1" {
			t.Errorf("refund must record the approving admin")
		}
		if deps.gateway.Calls.Cancel != 1 {
			t.Errorf("expected one gateway cancel, got %d", deps.gateway.Calls.Cancel)
		}
		if bal, _ := deps.ledger.Balance(ctx, nil, "user-1"); bal != 0 {
			t.Errorf("expected token credit reversed, balance=%d", bal)
		}
		updated, _ := deps.payments.FindByID(ctx, nil, p.ID)
		if updated.Status != model.PaymentStatusRefunded {
			t.Errorf("expected payment refunded, got %s", updated.Status)
		}
	})

	t.Run("approving a subscription payment ends the subscription", func(t *testing.T) {
		deps := newRefundDeps()
		plan := &model.Plan{ID: "plan-sub", Name: "Monthly", Kind: model.PlanKindSubscription, PriceKRW: 29_000, TokenGrant: 5_000, BillingCycleDays: 30}
		sub, _ := model.NewSubscription("sub-1", "user-1", plan, "mockpay", "bk-1")
		if err := deps.subs.Save(ctx, nil, sub); err != nil {
			t.Fatalf("seed sub: %v", err)
		}
		paidAt := time.Now()
		p, err := model.NewPayment("pay-1", "pn-1", "ext-1", "m-1",
			"user-1", "plan-sub", "mockpay", 29_000, 5_000, model.PaymentStatusSuccess, &paidAt)
		if err != nil {
			t.Fatalf("new payment: %v", err)
		}
		p.SubscriptionID = &sub.ID
		if err := deps.payments.Save(ctx, nil, p); err != nil {
			t.Fatalf("save payment: %v", err)
		}
		deps.ledger.Set("user-1", 5_000)
		ref := pending(t, deps, p)

		if _, err := deps.uc().Approve(ctx, "admin-1", ref.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if deps.subs.Get("sub-1").Status != model.SubscriptionStatusCancelled {
			t.Errorf("refunded subscription payment must cancel the subscription")
		}
	})

	t.Run("gateway cancel failure leaves the refund pending", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)
		ref := pending(t, deps, p)
		deps.gateway.CancelFunc = func(ctx context.Context, externalID string, amount int64, reason string) (*adapter.CancelResult, error) {
			return nil, &domain.GatewayError{Provider: "mockpay", Transient: true, Message: "upstream timeout"}
		}

		_, err := deps.uc().Approve(ctx, "admin-1", ref.ID)
		if err == nil {
			t.Fatal("expected cancel failure to surface")
		}
		stored, _ := deps.refunds.FindByID(ctx, nil, ref.ID)
		if stored.Status != model.RefundStatusPending {
			t.Errorf("failed cancel must leave the refund pending, got %s", stored.Status)
		}
		if bal, _ := deps.ledger.Balance(ctx, nil, "user-1"); bal != 1_000 {
			t.Errorf("failed cancel must not touch the ledger, balance=%d", bal)
		}
	})

	t.Run("spent tokens block the refund before the gateway is touched", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)
		ref := pending(t, deps, p)
		deps.ledger.Set("user-1", 400) // user already spent 600

		_, err := deps.uc().Approve(ctx, "admin-1", ref.ID)
		if !errors.Is(err, domain.ErrInsufficientTokens) {
			t.Fatalf("expected ErrInsufficientTokens, got %v", err)
		}
		if deps.gateway.Calls.Cancel != 0 {
			t.Errorf("blocked refund must never reach the gateway, got %d cancels", deps.gateway.Calls.Cancel)
		}
		stored, _ := deps.refunds.FindByID(ctx, nil, ref.ID)
		if stored.Status != model.RefundStatusPending {
			t.Errorf("blocked refund stays pending, got %s", stored.Status)
		}
	})

	t.Run("double approval is refused", func(t *testing.T) {
		deps := newRefundDeps()
		p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)
		ref := pending(t, deps, p)
		uc := deps.uc()

		if _, err := uc.Approve(ctx, "admin-1", ref.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
		_, err := uc.Approve(ctx, "admin-2", ref.ID)
		if !errors.Is(err, domain.ErrRefundNotPending) {
			t.Errorf("expected ErrRefundNotPending, got %v", err)
		}
		if deps.gateway.Calls.Cancel != 1 {
			t.Errorf("second approval must not cancel again, got %d", deps.gateway.Calls.Cancel)
		}
	})
}

func TestRefundUseCase_Reject(t *testing.T) {
	ctx := context.Background()

	deps := newRefundDeps()
	p := deps.successPayment(t, "pay-1", "user-1", 10_000, 1_000)
	_, ref, err := deps.uc().Request(ctx, "user-1", p.ID, "refund please", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	got, err := deps.uc().Reject(ctx, "admin-1", ref.ID, "outside the refund window")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != model.RefundStatusRejected {
		t.Errorf("expected rejected, got %s", got.Status)
	}
	if got.AdminNote != "outside the refund window" {
		t.Errorf("rejection must carry the admin note")
	}
	if deps.gateway.Calls.Cancel != 0 {
		t.Errorf("rejection never touches the gateway")
	}
	if bal, _ := deps.ledger.Balance(ctx, nil, "user-1"); bal != 1_000 {
		t.Errorf("rejection never touches the ledger, balance=%d", bal)
	}

	// A rejected refund frees the payment for a new request.
	if _, _, err := deps.uc().Request(ctx, "user-1", p.ID, "second try", ""); err != nil {
		t.Errorf("new request after rejection should succeed, got %v", err)
	}
}
