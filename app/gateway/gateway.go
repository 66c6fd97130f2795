package gateway

import (
	"context"
	"net/url"
)

type CreateInput struct {
	Amount     string
	Purpose    string
	BuyerName  string
	BuyerEmail string
}

type CreateOutput struct {
	PaymentRequestID string
	LongURL          string
}

// PaymentDetails is the gateway's own view of a payment.
type PaymentDetails struct {
	PaymentID        string
	PaymentRequestID string
	Status           string
}

type WebhookEvent struct {
	PaymentID        string
	PaymentRequestID string
	Status           string
}

type Gateway interface {
	CreatePaymentRequest(ctx context.Context, input *CreateInput) (*CreateOutput, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error)
	GetPaymentRequest(ctx context.Context, paymentRequestID string) (*PaymentDetails, error)
	VerifyAndParseWebhook(fields url.Values) (*WebhookEvent, error)
}
