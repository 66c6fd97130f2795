package entity

import "time"

const (
	EventPaymentCreated    = "payment_created"
	EventGatewayRedirect   = "gateway_redirect"
	EventGatewayWebhook    = "gateway_webhook"
	EventPaymentReconciled = "payment_reconciled"
)

type PaymentEvent struct {
	ID uint64

	PaymentID uint64

	EventType string

	OldStatus *string
	NewStatus string

	ProviderPaymentID *string
	PayloadJSON       *string

	CreatedAt time.Time
}
