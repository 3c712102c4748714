package adapter

import "context"

type NotificationKind string

const (
	NotifyPaymentCompleted    NotificationKind = "payment_completed"
	NotifyPaymentFailed       NotificationKind = "payment_failed"
	NotifySubscriptionRenewed NotificationKind = "subscription_renewed"
	NotifySubscriptionPastDue NotificationKind = "subscription_past_due"
	NotifySubscriptionEnded   NotificationKind = "subscription_cancelled"
	NotifyRefundApproved      NotificationKind = "refund_approved"
	NotifyRefundRejected      NotificationKind = "refund_rejected"
)

// Notifier is the best-effort notification dispatcher owned by another
// subsystem. Calls are fire-and-forget after commit; failures are logged and
// never roll back monetary effects.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind NotificationKind, payload map[string]string) error
}
