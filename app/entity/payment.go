package entity

import "time"

const StatusPending = "PENDING"

// Payment is one payment-link attempt requested from the chat bot.
type Payment struct {
	ID uint64

	RequesterID    int64
	ChatID         int64
	RequesterName  string
	RequesterEmail string

	Amount  string
	Purpose string

	PaymentLink       string
	ProviderRequestID *string
	ProviderPaymentID *string

	Status string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}
