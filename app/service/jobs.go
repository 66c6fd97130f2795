package service

import (
	"context"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
	"github.com/vibast-solutions/ms-go-tg-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-tg-payments/app/metrics"
)

// RunReconcileBatch polls the gateway for stale pending payments whose callback never
// arrived. Unchanged payments are still touched so the next batch moves on.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	before := time.Now().UTC().Add(-s.staleAfter())
	items, err := s.paymentRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.ProviderRequestID == nil || strings.TrimSpace(*payment.ProviderRequestID) == "" {
			continue
		}

		details, err := s.gateway.GetPaymentRequest(ctx, strings.TrimSpace(*payment.ProviderRequestID))
		if err != nil {
			s.metrics.GatewayRequest("get_payment_request", gateway.KindOf(err).String())
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		s.metrics.GatewayRequest("get_payment_request", metrics.OutcomeSuccess)

		status := strings.TrimSpace(details.Status)
		if status == "" {
			status = payment.Status
		}

		if err := s.applyStatus(ctx, payment, statusUpdate{
			status:            status,
			providerPaymentID: details.PaymentID,
			eventType:         entity.EventPaymentReconciled,
			origin:            "reconcile",
		}); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func keepFirstErr(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
