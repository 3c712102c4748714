package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/domain/ports/repository"
)

// PortOneGateway talks to the PortOne (Iamport) REST API. Authentication is a
// short-lived bearer token fetched from /users/getToken and cached until just
// before its expiry.
type PortOneGateway struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPortOneGateway(apiKey, apiSecret, baseURL string) *PortOneGateway {
	if baseURL == "" {
		baseURL = "https://api.iamport.kr"
	}
	return &PortOneGateway{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (g *PortOneGateway) Name() string { return "portone" }

type portoneTokenResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response struct {
		AccessToken string `json:"access_token"`
		ExpiredAt   int64  `json:"expired_at"` // unix seconds
	} `json:"response"`
}

// token returns a valid bearer token, refreshing it under the mutex when the
// cached one is within 30s of expiry.
func (g *PortOneGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessToken != "" && time.Now().Add(30*time.Second).Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	status, body, err := doJSON(ctx, g.client, g.Name(), "get_token", http.MethodPost,
		g.baseURL+"/users/getToken", nil, map[string]string{
			"imp_key":    g.apiKey,
			"imp_secret": g.apiSecret,
		})
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("http_%d", status), Message: string(body)}
	}

	var resp portoneTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", malformed(g.Name(), "get_token", err, body)
	}
	if resp.Code != 0 || resp.Response.AccessToken == "" {
		return "", &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("code_%d", resp.Code), Message: resp.Message}
	}

	g.accessToken = resp.Response.AccessToken
	g.tokenExpiry = time.Unix(resp.Response.ExpiredAt, 0)
	return g.accessToken, nil
}

// Prepare builds the checkout document the frontend hands to the PortOne SDK.
// No HTTP call is needed; PortOne validates merchant_uid/amount at approval.
func (g *PortOneGateway) Prepare(ctx context.Context, intent *model.PaymentIntent, buyer *repository.Buyer) (*adapter.GatewayRequest, error) {
	fields := map[string]string{
		"pg":           "portone",
		"pay_method":   intent.Method,
		"merchant_uid": intent.MerchantUID,
		"amount":       fmt.Sprintf("%d", intent.Amount),
		"name":         intent.PlanID,
	}
	if intent.Kind == model.IntentKindSubscriptionPlan || intent.Kind == model.IntentKindMethodChange {
		// Empty customer_uid asks the PG to issue a billing key at approval.
		fields["customer_uid"] = fmt.Sprintf("cust-%s", intent.UserID)
	}
	if buyer != nil {
		fields["buyer_name"] = buyer.Name
		fields["buyer_email"] = buyer.Email
		fields["buyer_tel"] = buyer.Phone
	}
	return &adapter.GatewayRequest{
		Provider:    g.Name(),
		MerchantUID: intent.MerchantUID,
		Amount:      intent.Amount,
		Fields:      fields,
	}, nil
}

type portonePaymentResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response struct {
		ImpUID      string `json:"imp_uid"`
		MerchantUID string `json:"merchant_uid"`
		Amount      int64  `json:"amount"`
		Status      string `json:"status"` // paid | ready | failed | cancelled
		PaidAt      int64  `json:"paid_at"`
		CustomerUID string `json:"customer_uid"`
		FailReason  string `json:"fail_reason"`
	} `json:"response"`
}

func (g *PortOneGateway) FetchStatus(ctx context.Context, externalID string) (*adapter.GatewayPaymentInfo, error) {
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := doJSON(ctx, g.client, g.Name(), "fetch_status", http.MethodGet,
		g.baseURL+"/payments/"+externalID, map[string]string{"Authorization": "Bearer " + tok}, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("http_%d", status), Message: string(body)}
	}

	var resp portonePaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "fetch_status", err, body)
	}
	if resp.Code != 0 {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("code_%d", resp.Code), Message: resp.Message}
	}

	r := resp.Response
	info := &adapter.GatewayPaymentInfo{
		ExternalID:  r.ImpUID,
		MerchantUID: r.MerchantUID,
		Amount:      r.Amount,
		Paid:        r.Status == "paid",
		BillingKey:  r.CustomerUID,
		FailReason:  r.FailReason,
	}
	if r.PaidAt > 0 {
		info.PaidAt = time.Unix(r.PaidAt, 0)
	}
	return info, nil
}

type portoneCancelResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response struct {
		ImpUID       string `json:"imp_uid"`
		CancelAmount int64  `json:"cancel_amount"`
		CancelledAt  int64  `json:"cancelled_at"`
		ReceiptURL   string `json:"receipt_url"`
	} `json:"response"`
}

func (g *PortOneGateway) Cancel(ctx context.Context, externalID string, amount int64, reason string) (*adapter.CancelResult, error) {
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := doJSON(ctx, g.client, g.Name(), "cancel", http.MethodPost,
		g.baseURL+"/payments/cancel", map[string]string{"Authorization": "Bearer " + tok},
		map[string]any{
			"imp_uid": externalID,
			"amount":  amount,
			"reason":  reason,
		})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("http_%d", status), Message: string(body)}
	}

	var resp portoneCancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "cancel", err, body)
	}
	if resp.Code != 0 {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("code_%d", resp.Code), Message: resp.Message}
	}

	return &adapter.CancelResult{
		ExternalID:      resp.Response.ImpUID,
		CancelledAmount: resp.Response.CancelAmount,
		CancelledAt:     time.Unix(resp.Response.CancelledAt, 0),
		Receipt:         resp.Response.ReceiptURL,
	}, nil
}

func (g *PortOneGateway) ScheduleRecurring(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := doJSON(ctx, g.client, g.Name(), "schedule_recurring", http.MethodPost,
		g.baseURL+"/subscribe/payments/again", map[string]string{"Authorization": "Bearer " + tok},
		map[string]any{
			"customer_uid": billingKey,
			"merchant_uid": merchantUID,
			"amount":       amount,
			"schedule_at":  whenUTC.Unix(),
		})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("http_%d", status), Message: string(body)}
	}

	var resp portonePaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "schedule_recurring", err, body)
	}
	if resp.Code != 0 {
		// PortOne reports card declines with code != 0 on a 200 response.
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("code_%d", resp.Code), Message: resp.Message}
	}
	if resp.Response.Status != "paid" {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: resp.Response.Status, Message: resp.Response.FailReason}
	}

	return &adapter.ChargeResult{
		ExternalID: resp.Response.ImpUID,
		Amount:     resp.Response.Amount,
		PaidAt:     time.Unix(resp.Response.PaidAt, 0),
	}, nil
}
