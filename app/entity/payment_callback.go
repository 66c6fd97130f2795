package entity

import "time"

const (
	CallbackSourceRedirect = "redirect"
	CallbackSourceWebhook  = "webhook"

	CallbackStatusProcessed int32 = 10
	CallbackStatusRejected  int32 = 20
)

type PaymentCallback struct {
	ID uint64

	PaymentID *uint64

	Source            string
	ProviderPaymentID string
	ProviderRequestID string
	ReportedStatus    string
	PayloadJSON       string
	Status            int32
	Error             *string

	CreatedAt time.Time
}
