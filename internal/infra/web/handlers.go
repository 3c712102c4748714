package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/usecase"
)

type initiateRequest struct {
	UserID       string `json:"user_id"`
	PlanID       string `json:"plan_id"`
	CouponCode   string `json:"coupon_code"`
	Provider     string `json:"provider"`
	Method       string `json:"method"`
	MethodChange bool   `json:"method_change"`
}

type initiateResponse struct {
	MerchantUID string            `json:"merchant_uid"`
	Provider    string            `json:"provider"`
	Amount      int64             `json:"amount"`
	BaseAmount  int64             `json:"base_amount"`
	ExpiresAt   string            `json:"expires_at"`
	Fields      map[string]string `json:"fields"`
}

// Handler for starting a checkout: validates product and coupon, persists the
// intent and returns the gateway request document.
func initiateHandler(initUC usecase.InitiateUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req initiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		res, err := initUC.Initiate(r.Context(), usecase.InitiateInput{
			UserID:       req.UserID,
			PlanID:       req.PlanID,
			CouponCode:   req.CouponCode,
			Provider:     req.Provider,
			Method:       req.Method,
			MethodChange: req.MethodChange,
		})
		if err != nil {
			writeDomainErr(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, initiateResponse{
			MerchantUID: res.Intent.MerchantUID,
			Provider:    res.Request.Provider,
			Amount:      res.Intent.Amount,
			BaseAmount:  res.Intent.BaseAmount,
			ExpiresAt:   res.Intent.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
			Fields:      res.Request.Fields,
		})
	}
}

// Handler for the browser redirect after gateway approval. Status parameters
// on the redirect are untrusted; reconciliation re-fetches from the provider.
// The user always lands on a result page, success or not.
func callbackHandler(reconUC usecase.ReconcileUseCase, resultURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		provider := q.Get("provider")
		externalID := q.Get("external_id")
		if externalID == "" {
			externalID = q.Get("imp_uid") // PortOne redirect naming
		}
		merchantUID := q.Get("merchant_uid")
		if provider == "" || externalID == "" || merchantUID == "" {
			redirectResult(w, r, resultURL, "failed", "missing parameters")
			return
		}

		p, err := reconUC.Reconcile(r.Context(), provider, externalID, merchantUID)
		if err != nil {
			redirectResult(w, r, resultURL, "failed", reasonOf(err))
			return
		}
		if p == nil {
			// Method change acknowledges without a ledger row.
			redirectResult(w, r, resultURL, "success", "")
			return
		}
		v := url.Values{}
		v.Set("status", "success")
		v.Set("payment_number", p.PaymentNumber)
		http.Redirect(w, r, resultURL+"?"+v.Encode(), http.StatusFound)
	}
}

func redirectResult(w http.ResponseWriter, r *http.Request, resultURL, status, reason string) {
	v := url.Values{}
	v.Set("status", status)
	if reason != "" {
		v.Set("reason", reason)
	}
	http.Redirect(w, r, resultURL+"?"+v.Encode(), http.StatusFound)
}

type webhookRequest struct {
	ExternalID  string `json:"external_id"`
	ImpUID      string `json:"imp_uid"` // PortOne webhook naming
	MerchantUID string `json:"merchant_uid"`
	Status      string `json:"status"` // informational only, never trusted
}

// Handler for asynchronous gateway webhooks. Duplicates, late notifications
// and no-ops all answer 200 so the provider stops retrying; only conditions
// worth a provider-side retry answer 5xx.
func webhookHandler(reconUC usecase.ReconcileUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		externalID := req.ExternalID
		if externalID == "" {
			externalID = req.ImpUID
		}
		if externalID == "" || req.MerchantUID == "" {
			http.Error(w, "Missing transaction identifiers", http.StatusBadRequest)
			return
		}

		_, err := reconUC.Reconcile(r.Context(), provider, externalID, req.MerchantUID)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, domain.ErrIntentExpired),
			errors.Is(err, domain.ErrIntentConsumed),
			errors.Is(err, domain.ErrPaymentNotPaid),
			errors.Is(err, domain.ErrAmountMismatch),
			errors.Is(err, domain.ErrActiveSubscriptionExists),
			errors.Is(err, domain.ErrNotFound):
			// Terminal from the gateway's point of view; retrying cannot help.
			w.WriteHeader(http.StatusOK)
		case domain.IsTransientGatewayError(err):
			http.Error(w, "Temporarily unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}
}

type refundCreateRequest struct {
	UserID    string `json:"user_id"`
	PaymentID string `json:"payment_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

func refundRequestHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		inq, ref, err := refundUC.Request(r.Context(), req.UserID, req.PaymentID, req.Title, req.Body)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"inquiry_id": inq.ID,
			"refund_id":  ref.ID,
			"status":     ref.Status,
			"amount":     ref.Amount,
		})
	}
}

func adminRefundsListHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				limit = n
			}
		}
		refs, err := refundUC.ListPending(r.Context(), limit)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, refs)
	}
}

func adminRefundApproveHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := refundUC.Approve(r.Context(), adminID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ref)
	}
}

type refundRejectRequest struct {
	Note string `json:"note"`
}

func adminRefundRejectHandler(refundUC usecase.RefundUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		ref, err := refundUC.Reject(r.Context(), adminID(r.Context()), chi.URLParam(r, "id"), req.Note)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ref)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// reasonOf flattens an error into a short redirect-safe reason string.
func reasonOf(err error) string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	switch {
	case errors.Is(err, domain.ErrIntentExpired):
		return "intent_expired"
	case errors.Is(err, domain.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, domain.ErrPaymentNotPaid):
		return "not_paid"
	case errors.Is(err, domain.ErrActiveSubscriptionExists):
		return "duplicate_subscription"
	default:
		return "error"
	}
}

func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrCouponNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrCouponNotStarted),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponExhausted),
		errors.Is(err, domain.ErrCouponAlreadyUsed),
		errors.Is(err, domain.ErrActiveSubscriptionExists),
		errors.Is(err, domain.ErrRefundExists),
		errors.Is(err, domain.ErrRefundNotPending),
		errors.Is(err, domain.ErrPaymentNotRefundable),
		errors.Is(err, domain.ErrInsufficientTokens):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrUnknownProvider):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case domain.IsTransientGatewayError(err):
		http.Error(w, "Payment provider temporarily unavailable", http.StatusBadGateway)
	case domain.IsTerminalGatewayError(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
