//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error

	mu sync.Mutex
	// Calls counts how many transactions were opened.
	Calls int
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately. The in-memory repos apply writes
// eagerly, so "rollback" tests assert on the error path instead.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// ---- In-memory PaymentIntentRepository ----

type MockIntentRepo struct {
	mu    sync.Mutex
	store map[string]*model.PaymentIntent // by merchant_uid

	SaveFunc         func(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus) error
}

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{store: map[string]*model.PaymentIntent{}}
}

var _ repository.PaymentIntentRepository = (*MockIntentRepo)(nil)

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, in)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[in.MerchantUID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *in
	m.store[in.MerchantUID] = &cp
	return nil
}

func (m *MockIntentRepo) FindByMerchantUID(ctx context.Context, tx repository.Tx, merchantUID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.store[merchantUID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *MockIntentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.store {
		if in.ID == id {
			in.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockIntentRepo) SetExternalRef(ctx context.Context, tx repository.Tx, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.store {
		if in.ID == id {
			r := ref
			in.ExternalRef = &r
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockIntentRepo) ExpireOlderThan(ctx context.Context, tx repository.Tx, now time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, in := range m.store {
		if (in.Status == model.IntentStatusCreated || in.Status == model.IntentStatusAwaitingGateway) && in.ExpiresAt.Before(now) {
			in.Status = model.IntentStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *MockIntentRepo) ListAwaitingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, in := range m.store {
		if in.Status == model.IntentStatusAwaitingGateway && in.CreatedAt.Before(olderThan) {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Status returns the current status of the intent with the given merchant_uid.
func (m *MockIntentRepo) Status(merchantUID string) model.IntentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.store[merchantUID]; ok {
		return in.Status
	}
	return ""
}

// ---- In-memory PaymentRepository ----

// MockPaymentRepo enforces the same uniqueness the real schema does:
// duplicate external_id or merchant_uid inserts fail with ErrAlreadyExists.
type MockPaymentRepo struct {
	mu    sync.Mutex
	store map[string]*model.Payment // by id

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: map[string]*model.Payment{}}
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.store {
		if ex.ExternalID == p.ExternalID || ex.MerchantUID == p.MerchantUID || ex.PaymentNumber == p.PaymentNumber {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindByMerchantUID(ctx context.Context, tx repository.Tx, merchantUID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.MerchantUID == merchantUID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !p.CanTransition(status) {
		return domain.ErrOperationFailed
	}
	p.Status = status
	return nil
}

func (m *MockPaymentRepo) ExistsForSubscriptionSince(ctx context.Context, tx repository.Tx, subscriptionID string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID &&
			p.Status == model.PaymentStatusSuccess && !p.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockPaymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusSuccess {
			sum += p.Amount
		}
	}
	return sum, nil
}

// Count returns how many ledger rows exist; the exactly-once assertions use it.
func (m *MockPaymentRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// ---- In-memory SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription // by id

	SaveFunc func(ctx context.Context, tx repository.Tx, sub *model.Subscription) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: map[string]*model.Subscription{}}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) live(s *model.Subscription) bool {
	return s.Status == model.SubscriptionStatusActive || s.Status == model.SubscriptionStatusPastDue
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// mirror the partial unique index: one live subscription per user
	if m.live(sub) {
		for _, ex := range m.store {
			if ex.ID != sub.ID && ex.UserID == sub.UserID && m.live(ex) {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *sub
	m.store[sub.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindLiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.UserID == userID && m.live(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && !s.NextBillingDate.After(asOf) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListPastDueOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusPastDue && s.UpdatedAt.Before(olderThan) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) UpdateBillingKey(ctx context.Context, tx repository.Tx, id, billingKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.BillingKey = billingKey
	return nil
}

func (m *MockSubscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive {
			out[s.PlanID]++
		}
	}
	return out, nil
}

// Get returns the stored subscription by id without copying semantics surprises.
func (m *MockSubscriptionRepo) Get(id string) *model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.store[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// ---- In-memory CouponRepository ----

type MockCouponRepo struct {
	mu          sync.Mutex
	coupons     map[string]*model.Coupon // by id
	redemptions map[string]*model.UserCoupon
}

func NewMockCouponRepo() *MockCouponRepo {
	return &MockCouponRepo{
		coupons:     map[string]*model.Coupon{},
		redemptions: map[string]*model.UserCoupon{},
	}
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func (m *MockCouponRepo) Put(c *model.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.coupons[c.ID] = &cp
}

func (m *MockCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCouponRepo) ConsumeUsage(ctx context.Context, tx repository.Tx, couponID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[couponID]
	if !ok {
		return domain.ErrCouponNotFound
	}
	if c.MaxUsage > 0 && c.UsedCount >= c.MaxUsage {
		return domain.ErrCouponExhausted
	}
	c.UsedCount++
	return nil
}

func (m *MockCouponRepo) HasRedemption(ctx context.Context, tx repository.Tx, userID, couponID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.redemptions[userID+"/"+couponID]
	return ok, nil
}

func (m *MockCouponRepo) SaveRedemption(ctx context.Context, tx repository.Tx, uc *model.UserCoupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := uc.UserID + "/" + uc.CouponID
	if _, ok := m.redemptions[key]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *uc
	m.redemptions[key] = &cp
	return nil
}

// UsedCount reports the coupon's current usage counter.
func (m *MockCouponRepo) UsedCount(couponID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.coupons[couponID]; ok {
		return c.UsedCount
	}
	return -1
}

// ---- In-memory RefundRepository ----

type MockRefundRepo struct {
	mu        sync.Mutex
	inquiries map[string]*model.Inquiry
	refunds   map[string]*model.Refund
}

func NewMockRefundRepo() *MockRefundRepo {
	return &MockRefundRepo{
		inquiries: map[string]*model.Inquiry{},
		refunds:   map[string]*model.Refund{},
	}
}

var _ repository.RefundRepository = (*MockRefundRepo)(nil)

func (m *MockRefundRepo) SaveRequest(ctx context.Context, tx repository.Tx, inq *model.Inquiry, ref *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.refunds {
		if ex.PaymentID == ref.PaymentID && ex.Status == model.RefundStatusPending {
			return domain.ErrRefundExists
		}
	}
	icp, rcp := *inq, *ref
	m.inquiries[inq.ID] = &icp
	m.refunds[ref.ID] = &rcp
	return nil
}

func (m *MockRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRefundRepo) FindByInquiryID(ctx context.Context, tx repository.Tx, inquiryID string) (*model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.InquiryID == inquiryID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockRefundRepo) FindPendingByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.Status == model.RefundStatusPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockRefundRepo) Update(ctx context.Context, tx repository.Tx, ref *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refunds[ref.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *ref
	m.refunds[ref.ID] = &cp
	return nil
}

func (m *MockRefundRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Refund
	for _, r := range m.refunds {
		if r.Status == model.RefundStatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- In-memory PlanRepository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.Plan
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: map[string]*model.Plan{}}
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func (m *MockPlanRepo) Put(p *model.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
}

func (m *MockPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListAll(ctx context.Context) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- In-memory TokenLedger ----

type MockLedger struct {
	mu       sync.Mutex
	balances map[string]int64

	CreditFunc func(ctx context.Context, tx repository.Tx, userID string, tokens int64) error
	DebitFunc  func(ctx context.Context, tx repository.Tx, userID string, tokens int64) error
}

func NewMockLedger() *MockLedger {
	return &MockLedger{balances: map[string]int64{}}
}

var _ repository.TokenLedger = (*MockLedger)(nil)

func (m *MockLedger) Credit(ctx context.Context, tx repository.Tx, userID string, tokens int64) error {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, tx, userID, tokens)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += tokens
	return nil
}

func (m *MockLedger) Debit(ctx context.Context, tx repository.Tx, userID string, tokens int64) error {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, tx, userID, tokens)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < tokens {
		return domain.ErrInsufficientTokens
	}
	m.balances[userID] -= tokens
	return nil
}

func (m *MockLedger) Balance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MockLedger) Set(userID string, tokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = tokens
}

// ---- In-memory UserDirectory ----

type MockUserDirectory struct {
	Buyers map[string]*repository.Buyer
}

func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{Buyers: map[string]*repository.Buyer{}}
}

var _ repository.UserDirectory = (*MockUserDirectory)(nil)

func (m *MockUserDirectory) FindBuyer(ctx context.Context, userID string) (*repository.Buyer, error) {
	if b, ok := m.Buyers[userID]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Mock PaymentGateway ----

type MockGateway struct {
	NameValue string

	PrepareFunc           func(ctx context.Context, intent *model.PaymentIntent, buyer *repository.Buyer) (*adapter.GatewayRequest, error)
	FetchStatusFunc       func(ctx context.Context, externalID string) (*adapter.GatewayPaymentInfo, error)
	CancelFunc            func(ctx context.Context, externalID string, amount int64, reason string) (*adapter.CancelResult, error)
	ScheduleRecurringFunc func(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error)

	mu    sync.Mutex
	Calls struct {
		Prepare     int
		FetchStatus int
		Cancel      int
		Recurring   int
	}
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mockpay"
}

func (m *MockGateway) Prepare(ctx context.Context, intent *model.PaymentIntent, buyer *repository.Buyer) (*adapter.GatewayRequest, error) {
	m.mu.Lock()
	m.Calls.Prepare++
	m.mu.Unlock()
	if m.PrepareFunc != nil {
		return m.PrepareFunc(ctx, intent, buyer)
	}
	return &adapter.GatewayRequest{
		Provider:    m.Name(),
		MerchantUID: intent.MerchantUID,
		Amount:      intent.Amount,
		Fields:      map[string]string{"merchant_uid": intent.MerchantUID},
	}, nil
}

func (m *MockGateway) FetchStatus(ctx context.Context, externalID string) (*adapter.GatewayPaymentInfo, error) {
	m.mu.Lock()
	m.Calls.FetchStatus++
	m.mu.Unlock()
	if m.FetchStatusFunc != nil {
		return m.FetchStatusFunc(ctx, externalID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockGateway) Cancel(ctx context.Context, externalID string, amount int64, reason string) (*adapter.CancelResult, error) {
	m.mu.Lock()
	m.Calls.Cancel++
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, externalID, amount, reason)
	}
	return &adapter.CancelResult{ExternalID: externalID, CancelledAmount: amount, CancelledAt: time.Now(), Receipt: "receipt-" + externalID}, nil
}

func (m *MockGateway) ScheduleRecurring(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
	m.mu.Lock()
	m.Calls.Recurring++
	m.mu.Unlock()
	if m.ScheduleRecurringFunc != nil {
		return m.ScheduleRecurringFunc(ctx, billingKey, merchantUID, amount, whenUTC)
	}
	return &adapter.ChargeResult{ExternalID: "ext-" + merchantUID, Amount: amount, PaidAt: whenUTC}, nil
}

// ---- Mock GatewayRegistry ----

type MockRegistry struct {
	Gateways map[string]adapter.PaymentGateway
}

func NewMockRegistry(gws ...adapter.PaymentGateway) *MockRegistry {
	r := &MockRegistry{Gateways: map[string]adapter.PaymentGateway{}}
	for _, g := range gws {
		r.Gateways[g.Name()] = g
	}
	return r
}

var _ adapter.GatewayRegistry = (*MockRegistry)(nil)

func (m *MockRegistry) Resolve(provider string) (adapter.PaymentGateway, error) {
	if g, ok := m.Gateways[provider]; ok {
		return g, nil
	}
	return nil, domain.ErrUnknownProvider
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu   sync.Mutex
	Sent []struct {
		UserID string
		Kind   adapter.NotificationKind
	}
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, userID string, kind adapter.NotificationKind, payload map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, struct {
		UserID string
		Kind   adapter.NotificationKind
	}{userID, kind})
	return nil
}
