package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// WebhookAckResponse is what Telegram gets back for every update.
type WebhookAckResponse struct {
	Success bool `json:"success"`
}

type Payment struct {
	Id                uint64 `json:"id"`
	RequesterId       int64  `json:"requester_id"`
	ChatId            int64  `json:"chat_id"`
	RequesterName     string `json:"requester_name"`
	RequesterEmail    string `json:"requester_email"`
	Amount            string `json:"amount"`
	Purpose           string `json:"purpose"`
	PaymentLink       string `json:"payment_link"`
	ProviderRequestId string `json:"provider_request_id,omitempty"`
	ProviderPaymentId string `json:"provider_payment_id,omitempty"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}
