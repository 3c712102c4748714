package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/domain/ports/repository"
)

// KakaoPayGateway talks to the KakaoPay online payment API. Authentication is
// a static secret key header; no token exchange.
type KakaoPayGateway struct {
	secretKey string
	cid       string // merchant code
	baseURL   string
	client    *http.Client
}

func NewKakaoPayGateway(secretKey, cid, baseURL string) *KakaoPayGateway {
	if baseURL == "" {
		baseURL = "https://open-api.kakaopay.com"
	}
	return &KakaoPayGateway{
		secretKey: secretKey,
		cid:       cid,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (g *KakaoPayGateway) Name() string { return "kakaopay" }

func (g *KakaoPayGateway) authHeader() map[string]string {
	return map[string]string{"Authorization": "SECRET_KEY " + g.secretKey}
}

type kakaoErrorBody struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// declineOf extracts KakaoPay's decline code from a 4xx body; the code is
// surfaced verbatim to the caller.
func (g *KakaoPayGateway) declineOf(status int, body []byte) error {
	var eb kakaoErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.ErrorCode != 0 {
		return &domain.GatewayError{
			Provider:  g.Name(),
			Transient: false,
			Code:      fmt.Sprintf("%d", eb.ErrorCode),
			Message:   eb.ErrorMessage,
		}
	}
	return &domain.GatewayError{Provider: g.Name(), Transient: false, Code: fmt.Sprintf("http_%d", status), Message: string(body)}
}

type kakaoReadyResponse struct {
	TID         string `json:"tid"`
	RedirectURL string `json:"next_redirect_pc_url"`
	CreatedAt   string `json:"created_at"`
}

// Prepare opens a checkout session via /ready; KakaoPay issues the tid the
// frontend redirect needs up front.
func (g *KakaoPayGateway) Prepare(ctx context.Context, intent *model.PaymentIntent, buyer *repository.Buyer) (*adapter.GatewayRequest, error) {
	payload := map[string]any{
		"cid":              g.cid,
		"partner_order_id": intent.MerchantUID,
		"partner_user_id":  intent.UserID,
		"item_name":        intent.PlanID,
		"quantity":         1,
		"total_amount":     intent.Amount,
		"tax_free_amount":  0,
	}
	status, body, err := doJSON(ctx, g.client, g.Name(), "prepare", http.MethodPost,
		g.baseURL+"/online/v1/payment/ready", g.authHeader(), payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, g.declineOf(status, body)
	}

	var resp kakaoReadyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "prepare", err, body)
	}
	if resp.TID == "" {
		return nil, malformed(g.Name(), "prepare", fmt.Errorf("missing tid"), body)
	}

	fields := map[string]string{
		"tid":              resp.TID,
		"partner_order_id": intent.MerchantUID,
		"redirect_url":     resp.RedirectURL,
	}
	if buyer != nil {
		fields["partner_user_name"] = buyer.Name
	}
	return &adapter.GatewayRequest{
		Provider:    g.Name(),
		MerchantUID: intent.MerchantUID,
		Amount:      intent.Amount,
		Fields:      fields,
	}, nil
}

type kakaoOrderResponse struct {
	TID            string `json:"tid"`
	SID            string `json:"sid"` // recurring key for subscription cid
	Status         string `json:"status"`
	PartnerOrderID string `json:"partner_order_id"`
	Amount         struct {
		Total int64 `json:"total"`
	} `json:"amount"`
	ApprovedAt string `json:"approved_at"`
}

func (g *KakaoPayGateway) FetchStatus(ctx context.Context, externalID string) (*adapter.GatewayPaymentInfo, error) {
	status, body, err := doJSON(ctx, g.client, g.Name(), "fetch_status", http.MethodPost,
		g.baseURL+"/online/v1/payment/order", g.authHeader(),
		map[string]any{"cid": g.cid, "tid": externalID})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, g.declineOf(status, body)
	}

	var resp kakaoOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "fetch_status", err, body)
	}

	info := &adapter.GatewayPaymentInfo{
		ExternalID:  resp.TID,
		MerchantUID: resp.PartnerOrderID,
		Amount:      resp.Amount.Total,
		Paid:        resp.Status == "SUCCESS_PAYMENT",
		BillingKey:  resp.SID,
		FailReason:  resp.Status,
	}
	if resp.ApprovedAt != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", resp.ApprovedAt); err == nil {
			info.PaidAt = t
		}
	}
	return info, nil
}

type kakaoCancelResponse struct {
	TID        string `json:"tid"`
	Status     string `json:"status"`
	CanceledAt string `json:"canceled_at"`
	Amount     struct {
		Total int64 `json:"total"`
	} `json:"canceled_amount"`
}

func (g *KakaoPayGateway) Cancel(ctx context.Context, externalID string, amount int64, reason string) (*adapter.CancelResult, error) {
	status, body, err := doJSON(ctx, g.client, g.Name(), "cancel", http.MethodPost,
		g.baseURL+"/online/v1/payment/cancel", g.authHeader(),
		map[string]any{
			"cid":                    g.cid,
			"tid":                    externalID,
			"cancel_amount":          amount,
			"cancel_tax_free_amount": 0,
		})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, g.declineOf(status, body)
	}

	var resp kakaoCancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "cancel", err, body)
	}
	if resp.Status != "CANCEL_PAYMENT" {
		return nil, &domain.GatewayError{Provider: g.Name(), Transient: false, Code: resp.Status, Message: "cancel not confirmed"}
	}

	out := &adapter.CancelResult{
		ExternalID:      resp.TID,
		CancelledAmount: resp.Amount.Total,
		Receipt:         resp.TID,
	}
	if t, err := time.Parse("2006-01-02T15:04:05", resp.CanceledAt); err == nil {
		out.CancelledAt = t
	}
	return out, nil
}

func (g *KakaoPayGateway) ScheduleRecurring(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*adapter.ChargeResult, error) {
	status, body, err := doJSON(ctx, g.client, g.Name(), "schedule_recurring", http.MethodPost,
		g.baseURL+"/online/v1/payment/subscription", g.authHeader(),
		map[string]any{
			"cid":              g.cid,
			"sid":              billingKey,
			"partner_order_id": merchantUID,
			"partner_user_id":  merchantUID,
			"item_name":        "subscription renewal",
			"quantity":         1,
			"total_amount":     amount,
			"tax_free_amount":  0,
		})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, g.declineOf(status, body)
	}

	var resp kakaoOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(g.Name(), "schedule_recurring", err, body)
	}

	out := &adapter.ChargeResult{
		ExternalID: resp.TID,
		Amount:     resp.Amount.Total,
	}
	if t, err := time.Parse("2006-01-02T15:04:05", resp.ApprovedAt); err == nil {
		out.PaidAt = t
	} else {
		out.PaidAt = whenUTC
	}
	return out, nil
}
