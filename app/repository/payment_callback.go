package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
)

type PaymentCallbackRepository struct {
	db DBTX
}

func NewPaymentCallbackRepository(db DBTX) *PaymentCallbackRepository {
	return &PaymentCallbackRepository{db: db}
}

func (r *PaymentCallbackRepository) Create(ctx context.Context, callback *entity.PaymentCallback) error {
	query := `
		INSERT INTO payment_callbacks (
			payment_id, source, provider_payment_id, provider_request_id,
			reported_status, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var paymentID interface{}
	if callback.PaymentID != nil {
		paymentID = *callback.PaymentID
	}

	result, err := r.db.ExecContext(ctx, query,
		paymentID,
		callback.Source,
		callback.ProviderPaymentID,
		callback.ProviderRequestID,
		callback.ReportedStatus,
		callback.PayloadJSON,
		callback.Status,
		nullableStringValue(callback.Error),
		callback.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	callback.ID = uint64(id)

	return nil
}
