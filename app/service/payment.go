package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
	"github.com/vibast-solutions/ms-go-tg-payments/app/events"
	"github.com/vibast-solutions/ms-go-tg-payments/app/factory"
	"github.com/vibast-solutions/ms-go-tg-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-tg-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-tg-payments/app/repository"
	"github.com/vibast-solutions/ms-go-tg-payments/config"
)

const (
	defaultListLimit  = int32(100)
	defaultBatchSize  = int32(100)
	defaultStaleAfter = 15 * time.Minute
)

type createPaymentLinkRequest interface {
	GetRequesterId() int64
	GetChatId() int64
	GetRequesterName() string
	GetRequesterEmail() string
	GetAmount() string
	GetPurpose() string
}

type listPaymentsRequest interface {
	GetRequesterId() int64
	GetStatus() string
	GetLimit() int32
	GetOffset() int32
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	FindByProviderRequestID(ctx context.Context, requestID string) (*entity.Payment, error)
	ListByLinkFragment(ctx context.Context, fragment string) ([]*entity.Payment, error)
	List(ctx context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

// Notifier delivers a text message to a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// PaymentService owns the store and the outbound clients. Every handler receives it
// explicitly.
type PaymentService struct {
	paymentRepo  paymentRepository
	eventRepo    paymentEventRepository
	callbackRepo paymentCallbackRepository
	gateway      gateway.Gateway
	publisher    events.Publisher
	notifier     Notifier
	metrics      *metrics.Metrics
	gatewayCfg   config.InstamojoConfig
	jobsCfg      config.JobsConfig
	logger       logrus.FieldLogger
}

func NewPaymentService(
	paymentRepo paymentRepository,
	eventRepo paymentEventRepository,
	callbackRepo paymentCallbackRepository,
	gw gateway.Gateway,
	gatewayCfg config.InstamojoConfig,
	jobsCfg config.JobsConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		eventRepo:    eventRepo,
		callbackRepo: callbackRepo,
		gateway:      gw,
		publisher:    events.NopPublisher{},
		gatewayCfg:   gatewayCfg,
		jobsCfg:      jobsCfg,
		logger:       factory.NewModuleLogger("payment-service"),
	}
}

func (s *PaymentService) WithPublisher(publisher events.Publisher) *PaymentService {
	if publisher != nil {
		s.publisher = publisher
	}
	return s
}

func (s *PaymentService) WithNotifier(notifier Notifier) *PaymentService {
	s.notifier = notifier
	return s
}

func (s *PaymentService) WithMetrics(m *metrics.Metrics) *PaymentService {
	s.metrics = m
	return s
}

// CreatePaymentLink asks the gateway for a checkout link and stores a PENDING record
// for it. Any gateway failure is reported as ErrPaymentLinkFailed.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, req createPaymentLinkRequest) (*entity.Payment, error) {
	amount := strings.TrimSpace(req.GetAmount())
	purpose := strings.TrimSpace(req.GetPurpose())
	if amount == "" || purpose == "" {
		return nil, ErrInvalidRequest
	}

	output, err := s.gateway.CreatePaymentRequest(ctx, &gateway.CreateInput{
		Amount:     amount,
		Purpose:    purpose,
		BuyerName:  strings.TrimSpace(req.GetRequesterName()),
		BuyerEmail: strings.TrimSpace(req.GetRequesterEmail()),
	})
	if err != nil {
		kind := gateway.KindOf(err)
		s.metrics.GatewayRequest("create_payment_request", kind.String())
		s.logger.WithError(err).
			WithField("kind", kind.String()).
			WithField("requester_id", req.GetRequesterId()).
			Warn("Gateway refused payment request")
		return nil, fmt.Errorf("%w: %w", ErrPaymentLinkFailed, err)
	}
	s.metrics.GatewayRequest("create_payment_request", metrics.OutcomeSuccess)

	now := time.Now().UTC()
	payment := &entity.Payment{
		RequesterID:       req.GetRequesterId(),
		ChatID:            req.GetChatId(),
		RequesterName:     strings.TrimSpace(req.GetRequesterName()),
		RequesterEmail:    strings.TrimSpace(req.GetRequesterEmail()),
		Amount:            amount,
		Purpose:           purpose,
		PaymentLink:       output.LongURL,
		ProviderRequestID: normalizeOptionalString(output.PaymentRequestID),
		Status:            entity.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, ErrPaymentAlreadyExists
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: entity.EventPaymentCreated,
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uint64) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, req listPaymentsRequest) ([]*entity.Payment, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.paymentRepo.List(ctx, repository.PaymentFilter{
		RequesterID: req.GetRequesterId(),
		Status:      strings.TrimSpace(req.GetStatus()),
		Limit:       limit,
		Offset:      req.GetOffset(),
	})
}

// RecentPayments returns the newest payments of one requester.
func (s *PaymentService) RecentPayments(ctx context.Context, requesterID int64, limit int32) ([]*entity.Payment, error) {
	if requesterID == 0 {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 {
		limit = 5
	}
	return s.paymentRepo.List(ctx, repository.PaymentFilter{
		RequesterID: requesterID,
		Limit:       limit,
	})
}

type statusUpdate struct {
	status            string
	providerPaymentID string
	eventType         string
	origin            string
	payload           string
}

// applyStatus writes the status unconditionally. The event trail, the broker and the
// requester only hear about real changes.
func (s *PaymentService) applyStatus(ctx context.Context, payment *entity.Payment, upd statusUpdate) error {
	now := time.Now().UTC()
	oldStatus := payment.Status

	payment.Status = upd.status
	if id := normalizeOptionalString(upd.providerPaymentID); id != nil {
		payment.ProviderPaymentID = id
	}
	payment.UpdatedAt = now

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	if oldStatus == payment.Status {
		return nil
	}

	s.metrics.StatusTransition(upd.origin, payment.Status)

	var payloadPtr *string
	if upd.payload != "" {
		payload := upd.payload
		payloadPtr = &payload
	}
	if err := s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:         payment.ID,
		EventType:         upd.eventType,
		OldStatus:         &oldStatus,
		NewStatus:         payment.Status,
		ProviderPaymentID: payment.ProviderPaymentID,
		PayloadJSON:       payloadPtr,
		CreatedAt:         now,
	}); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("Failed to record payment event")
	}

	change := &events.StatusChange{
		PaymentID:         payment.ID,
		RequesterID:       payment.RequesterID,
		Amount:            payment.Amount,
		Purpose:           payment.Purpose,
		OldStatus:         oldStatus,
		NewStatus:         payment.Status,
		ProviderRequestID: derefString(payment.ProviderRequestID),
		ProviderPaymentID: derefString(payment.ProviderPaymentID),
		Origin:            upd.origin,
		OccurredAt:        now,
	}
	if err := s.publisher.PublishStatusChange(ctx, change); err != nil {
		s.metrics.EventPublished(metrics.OutcomeError)
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("Failed to publish status change")
	} else {
		s.metrics.EventPublished(metrics.OutcomeSuccess)
	}

	s.notifyRequester(ctx, payment)

	return nil
}

func (s *PaymentService) notifyRequester(ctx context.Context, payment *entity.Payment) {
	if s.notifier == nil || payment.ChatID == 0 {
		return
	}

	text := fmt.Sprintf("Payment #%d (%s for %s) is now %s.", payment.ID, payment.Amount, payment.Purpose, payment.Status)
	if err := s.notifier.SendText(ctx, payment.ChatID, text); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("Failed to notify requester")
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.jobsCfg.BatchSize > 0 {
		return s.jobsCfg.BatchSize
	}
	return defaultBatchSize
}

func (s *PaymentService) staleAfter() time.Duration {
	if s.jobsCfg.ReconcileStaleAfter > 0 {
		return s.jobsCfg.ReconcileStaleAfter
	}
	return defaultStaleAfter
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
