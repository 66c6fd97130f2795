package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
	"github.com/vibast-solutions/ms-go-tg-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-tg-payments/app/metrics"
)

const maxCallbackErrorLen = 1024

type gatewayCallbackRequest interface {
	GetPaymentId() string
	GetPaymentStatus() string
	GetPaymentRequestId() string
	GetPayload() string
}

type gatewayWebhookRequest interface {
	GetFields() url.Values
	GetPayload() string
}

// HandleGatewayCallback applies the status reported by the checkout redirect. It returns
// the payments it updated; no match is not an error.
func (s *PaymentService) HandleGatewayCallback(ctx context.Context, req gatewayCallbackRequest) ([]*entity.Payment, error) {
	paymentID := strings.TrimSpace(req.GetPaymentId())
	if paymentID == "" {
		return nil, ErrInvalidRequest
	}
	status := strings.TrimSpace(req.GetPaymentStatus())
	requestID := strings.TrimSpace(req.GetPaymentRequestId())

	audit := &entity.PaymentCallback{
		Source:            entity.CallbackSourceRedirect,
		ProviderPaymentID: paymentID,
		ProviderRequestID: requestID,
		ReportedStatus:    status,
		PayloadJSON:       req.GetPayload(),
	}

	if s.gatewayCfg.VerifyCallbacks {
		details, err := s.gateway.GetPayment(ctx, paymentID)
		if err != nil {
			s.metrics.GatewayRequest("get_payment", gateway.KindOf(err).String())
			s.rejectCallback(ctx, audit, fmt.Sprintf("gateway verification failed: %v", err))
			return nil, ErrCallbackRejected
		}
		s.metrics.GatewayRequest("get_payment", metrics.OutcomeSuccess)

		if requestID != "" && details.PaymentRequestID != "" && requestID != details.PaymentRequestID {
			s.rejectCallback(ctx, audit, "payment request id does not match gateway record")
			return nil, ErrCallbackRejected
		}
		if status != "" && !strings.EqualFold(status, details.Status) {
			s.logger.WithField("payment_id", paymentID).
				WithField("reported_status", status).
				WithField("gateway_status", details.Status).
				Warn("Callback status differs from gateway, using gateway status")
		}
		status = details.Status
		if requestID == "" {
			requestID = details.PaymentRequestID
		}
	}

	if status == "" {
		return nil, ErrInvalidRequest
	}

	targets, err := s.findCallbackTargets(ctx, requestID, paymentID)
	if err != nil {
		return nil, err
	}

	for _, payment := range targets {
		if err := s.applyStatus(ctx, payment, statusUpdate{
			status:            status,
			providerPaymentID: paymentID,
			eventType:         entity.EventGatewayRedirect,
			origin:            entity.CallbackSourceRedirect,
			payload:           req.GetPayload(),
		}); err != nil {
			return nil, err
		}
	}

	s.persistProcessedCallback(ctx, audit, targets)

	return targets, nil
}

// HandleGatewayWebhook applies a MAC-signed server-to-server notification.
func (s *PaymentService) HandleGatewayWebhook(ctx context.Context, req gatewayWebhookRequest) ([]*entity.Payment, error) {
	fields := req.GetFields()
	audit := &entity.PaymentCallback{
		Source:            entity.CallbackSourceWebhook,
		ProviderPaymentID: strings.TrimSpace(fields.Get("payment_id")),
		ProviderRequestID: strings.TrimSpace(fields.Get("payment_request_id")),
		ReportedStatus:    strings.TrimSpace(fields.Get("status")),
		PayloadJSON:       req.GetPayload(),
	}

	event, err := s.gateway.VerifyAndParseWebhook(fields)
	if err != nil {
		s.rejectCallback(ctx, audit, fmt.Sprintf("webhook validation failed: %v", err))
		return nil, ErrCallbackRejected
	}
	if event.Status == "" || (event.PaymentRequestID == "" && event.PaymentID == "") {
		s.rejectCallback(ctx, audit, "webhook payload is missing status or identifiers")
		return nil, ErrCallbackRejected
	}

	targets, err := s.findCallbackTargets(ctx, event.PaymentRequestID, event.PaymentID)
	if err != nil {
		return nil, err
	}

	for _, payment := range targets {
		if err := s.applyStatus(ctx, payment, statusUpdate{
			status:            event.Status,
			providerPaymentID: event.PaymentID,
			eventType:         entity.EventGatewayWebhook,
			origin:            entity.CallbackSourceWebhook,
			payload:           req.GetPayload(),
		}); err != nil {
			return nil, err
		}
	}

	s.persistProcessedCallback(ctx, audit, targets)

	return targets, nil
}

// findCallbackTargets resolves the payments a callback refers to. The payment request id
// is an exact key. Rows created before that column existed can only be found by searching
// payment_link, which may match more than one row.
func (s *PaymentService) findCallbackTargets(ctx context.Context, requestID, paymentID string) ([]*entity.Payment, error) {
	if requestID != "" {
		payment, err := s.paymentRepo.FindByProviderRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return []*entity.Payment{payment}, nil
		}
	}

	if !s.gatewayCfg.LegacyLinkMatch {
		return nil, nil
	}

	// once a request id is known, from the query or the verified gateway record, it is
	// the fragment searched for instead of the payment id
	fragment := requestID
	if fragment == "" {
		fragment = paymentID
	}
	if fragment == "" {
		return nil, nil
	}

	items, err := s.paymentRepo.ListByLinkFragment(ctx, fragment)
	if err != nil {
		return nil, err
	}
	if len(items) > 1 {
		ids := make([]uint64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		s.logger.WithField("fragment", fragment).
			WithField("payment_ids", ids).
			Warn("ambiguous payment link match, updating every matching payment")
	}

	return items, nil
}

// persistProcessedCallback audits a callback that was already applied. Failures are
// logged so the gateway still gets its acknowledgement.
func (s *PaymentService) persistProcessedCallback(ctx context.Context, audit *entity.PaymentCallback, targets []*entity.Payment) {
	switch len(targets) {
	case 0:
		s.metrics.Callback(audit.Source, metrics.CallbackUnmatched)
	case 1:
		s.metrics.Callback(audit.Source, metrics.CallbackProcessed)
	default:
		s.metrics.Callback(audit.Source, metrics.CallbackAmbiguous)
	}

	if len(targets) > 0 {
		paymentID := targets[0].ID
		audit.PaymentID = &paymentID
	}
	audit.Status = entity.CallbackStatusProcessed
	audit.CreatedAt = time.Now().UTC()

	if err := s.callbackRepo.Create(ctx, audit); err != nil {
		s.logger.WithError(err).
			WithField("source", audit.Source).
			WithField("provider_payment_id", audit.ProviderPaymentID).
			Warn("Failed to record processed callback")
	}
}

func (s *PaymentService) rejectCallback(ctx context.Context, audit *entity.PaymentCallback, reason string) {
	s.metrics.Callback(audit.Source, metrics.CallbackRejected)

	reason = truncate(strings.TrimSpace(reason), maxCallbackErrorLen)
	audit.Status = entity.CallbackStatusRejected
	audit.Error = &reason
	audit.CreatedAt = time.Now().UTC()

	s.logger.WithField("source", audit.Source).
		WithField("provider_payment_id", audit.ProviderPaymentID).
		WithField("reason", reason).
		Warn("Gateway callback rejected")

	_ = s.callbackRepo.Create(ctx, audit)
}
