package service

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
	"github.com/vibast-solutions/ms-go-tg-payments/app/events"
	"github.com/vibast-solutions/ms-go-tg-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-tg-payments/app/repository"
	"github.com/vibast-solutions/ms-go-tg-payments/app/types"
	"github.com/vibast-solutions/ms-go-tg-payments/config"
)

type servicePaymentRepo struct {
	payments map[uint64]*entity.Payment
	nextID   uint64
	updates  int
}

func newServicePaymentRepo() *servicePaymentRepo {
	return &servicePaymentRepo{
		payments: map[uint64]*entity.Payment{},
		nextID:   1,
	}
}

func (r *servicePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	if payment.ProviderRequestID != nil {
		for _, item := range r.payments {
			if item.ProviderRequestID != nil && *item.ProviderRequestID == *payment.ProviderRequestID {
				return repository.ErrPaymentAlreadyExists
			}
		}
	}
	id := r.nextID
	r.nextID++
	copyItem := *payment
	copyItem.ID = id
	r.payments[id] = &copyItem
	payment.ID = id
	return nil
}

func (r *servicePaymentRepo) Update(_ context.Context, payment *entity.Payment) error {
	if _, ok := r.payments[payment.ID]; !ok {
		return repository.ErrPaymentNotFound
	}
	r.updates++
	copyItem := *payment
	r.payments[payment.ID] = &copyItem
	return nil
}

func (r *servicePaymentRepo) FindByID(_ context.Context, id uint64) (*entity.Payment, error) {
	item, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *servicePaymentRepo) FindByProviderRequestID(_ context.Context, requestID string) (*entity.Payment, error) {
	for _, item := range r.payments {
		if item.ProviderRequestID != nil && *item.ProviderRequestID == requestID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *servicePaymentRepo) ListByLinkFragment(_ context.Context, fragment string) ([]*entity.Payment, error) {
	var out []*entity.Payment
	for _, item := range r.payments {
		if strings.Contains(item.PaymentLink, fragment) {
			copyItem := *item
			out = append(out, &copyItem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *servicePaymentRepo) List(_ context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error) {
	var out []*entity.Payment
	for _, item := range r.payments {
		if filter.RequesterID != 0 && item.RequesterID != filter.RequesterID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		copyItem := *item
		out = append(out, &copyItem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && int(filter.Limit) < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *servicePaymentRepo) ListForReconcile(_ context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	var out []*entity.Payment
	for _, item := range r.payments {
		if item.Status == entity.StatusPending && item.ProviderRequestID != nil && !item.UpdatedAt.After(before) {
			copyItem := *item
			out = append(out, &copyItem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *servicePaymentRepo) count() int {
	return len(r.payments)
}

type serviceEventRepo struct {
	events []*entity.PaymentEvent
}

func (r *serviceEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

type serviceCallbackRepo struct {
	callbacks []*entity.PaymentCallback
	createErr error
}

func (r *serviceCallbackRepo) Create(_ context.Context, callback *entity.PaymentCallback) error {
	if r.createErr != nil {
		return r.createErr
	}
	copyItem := *callback
	r.callbacks = append(r.callbacks, &copyItem)
	return nil
}

func (r *serviceCallbackRepo) last() *entity.PaymentCallback {
	if len(r.callbacks) == 0 {
		return nil
	}
	return r.callbacks[len(r.callbacks)-1]
}

type fakeGateway struct {
	createInputs  []*gateway.CreateInput
	createOutput  *gateway.CreateOutput
	createErr     error
	payments      map[string]*gateway.PaymentDetails
	paymentErr    error
	requests      map[string]*gateway.PaymentDetails
	requestErr    error
	webhookEvent  *gateway.WebhookEvent
	webhookErr    error
	getPaymentIDs []string
}

func (g *fakeGateway) CreatePaymentRequest(_ context.Context, input *gateway.CreateInput) (*gateway.CreateOutput, error) {
	copyInput := *input
	g.createInputs = append(g.createInputs, &copyInput)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.createOutput, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	g.getPaymentIDs = append(g.getPaymentIDs, paymentID)
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	details, ok := g.payments[paymentID]
	if !ok {
		return nil, &gateway.Error{Kind: gateway.KindStatus, Op: "get payment", StatusCode: 404, Err: errors.New("not found")}
	}
	return details, nil
}

func (g *fakeGateway) GetPaymentRequest(_ context.Context, requestID string) (*gateway.PaymentDetails, error) {
	if g.requestErr != nil {
		return nil, g.requestErr
	}
	details, ok := g.requests[requestID]
	if !ok {
		return &gateway.PaymentDetails{PaymentRequestID: requestID}, nil
	}
	return details, nil
}

func (g *fakeGateway) VerifyAndParseWebhook(_ url.Values) (*gateway.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhookEvent, nil
}

type fakePublisher struct {
	changes []*events.StatusChange
	err     error
}

func (p *fakePublisher) PublishStatusChange(_ context.Context, change *events.StatusChange) error {
	p.changes = append(p.changes, change)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeNotifier struct {
	chats []int64
	texts []string
}

func (n *fakeNotifier) SendText(_ context.Context, chatID int64, text string) error {
	n.chats = append(n.chats, chatID)
	n.texts = append(n.texts, text)
	return nil
}

type serviceFixture struct {
	svc       *PaymentService
	repo      *servicePaymentRepo
	events    *serviceEventRepo
	callbacks *serviceCallbackRepo
	gateway   *fakeGateway
	publisher *fakePublisher
	notifier  *fakeNotifier
}

func newServiceFixture(gatewayCfg config.InstamojoConfig) *serviceFixture {
	f := &serviceFixture{
		repo:      newServicePaymentRepo(),
		events:    &serviceEventRepo{},
		callbacks: &serviceCallbackRepo{},
		gateway: &fakeGateway{
			payments: map[string]*gateway.PaymentDetails{},
			requests: map[string]*gateway.PaymentDetails{},
		},
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
	}
	f.svc = NewPaymentService(f.repo, f.events, f.callbacks, f.gateway, gatewayCfg, config.JobsConfig{
		ReconcileStaleAfter: time.Minute,
		BatchSize:           10,
	}).WithPublisher(f.publisher).WithNotifier(f.notifier)
	return f
}

func (f *serviceFixture) seed(link string, requestID string) *entity.Payment {
	old := time.Now().UTC().Add(-time.Hour)
	payment := &entity.Payment{
		RequesterID:       42,
		ChatID:            4242,
		RequesterName:     "Jane Doe",
		RequesterEmail:    "janedoe@telegram.me",
		Amount:            "500",
		Purpose:           "Consulting session",
		PaymentLink:       link,
		ProviderRequestID: normalizeOptionalString(requestID),
		Status:            entity.StatusPending,
		CreatedAt:         old,
		UpdatedAt:         old,
	}
	_ = f.repo.Create(context.Background(), payment)
	return payment
}

func janeDoeRequest() *types.CreatePaymentLinkRequest {
	return &types.CreatePaymentLinkRequest{
		RequesterId:    42,
		ChatId:         4242,
		RequesterName:  "Jane Doe",
		RequesterEmail: "janedoe@telegram.me",
		Amount:         "500",
		Purpose:        "Consulting session",
	}
}

func TestCreatePaymentLinkStoresPendingRecord(t *testing.T) {
	f := newServiceFixture(config.InstamojoConfig{})
	f.gateway.createOutput = &gateway.CreateOutput{PaymentRequestID: "req_1", LongURL: "https://gw/@shop/req_1"}

	payment, err := f.svc.CreatePaymentLink(context.Background(), janeDoeRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(f.gateway.createInputs) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(f.gateway.createInputs))
	}
	input := f.gateway.createInputs[0]
	if input.Amount != "500" || input.Purpose != "Consulting session" || input.BuyerEmail != "janedoe@telegram.me" || input.BuyerName != "Jane Doe" {
		t.Fatalf("unexpected gateway input: %+v", input)
	}

	if f.repo.count() != 1 {
		t.Fatalf("expected exactly one record, got %d", f.repo.count())
	}
	stored, _ := f.repo.FindByID(context.Background(), payment.ID)
	if stored.Status != entity.StatusPending || stored.PaymentLink != "https://gw/@shop/req_1" {
		t.Fatalf("unexpected stored payment: %+v", stored)
	}
	if stored.ProviderRequestID == nil || *stored.ProviderRequestID != "req_1" {
		t.Fatalf("expected provider request id to be stored, got %v", stored.ProviderRequestID)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != entity.EventPaymentCreated {
		t.Fatalf("expected payment_created event, got %+v", f.events.events)
	}
}

func TestCreatePaymentLinkGatewayFailureCreatesNothing(t *testing.T) {
	failures := []error{
		&gateway.Error{Kind: gateway.KindTransport, Op: "create payment request", Err: errors.New("connection refused")},
		&gateway.Error{Kind: gateway.KindStatus, Op: "create payment request", StatusCode: 400, Err: errors.New("bad amount")},
		&gateway.Error{Kind: gateway.KindSchema, Op: "create payment request", Err: errors.New("payment_request.longurl missing")},
	}

	for _, failure := range failures {
		f := newServiceFixture(config.InstamojoConfig{})
		f.gateway.createErr = failure

		_, err := f.svc.CreatePaymentLink(context.Background(), janeDoeRequest())
		if !errors.Is(err, ErrPaymentLinkFailed) {
			t.Fatalf("expected ErrPaymentLinkFailed, got %v", err)
		}
		if gateway.KindOf(err) != failure.(*gateway.Error).Kind {
			t.Fatalf("expected gateway kind preserved, got %v", gateway.KindOf(err))
		}
		if f.repo.count() != 0 {
			t.Fatalf("expected no record, got %d", f.repo.count())
		}
	}
}

func TestCreatePaymentLinkRequiresAmountAndPurpose(t *testing.T) {
	f := newServiceFixture(config.InstamojoConfig{})
	req := janeDoeRequest()
	req.Purpose = " "

	if _, err := f.svc.CreatePaymentLink(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(f.gateway.createInputs) != 0 {
		t.Fatal("expected gateway not to be called")
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	f := newServiceFixture(config.InstamojoConfig{})
	if _, err := f.svc.GetPayment(context.Background(), 99); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestListAndRecentPayments(t *testing.T) {
	f := newServiceFixture(config.InstamojoConfig{})
	for i := 0; i < 7; i++ {
		f.seed("https://gw/link", "")
	}
	other := f.seed("https://gw/other", "")
	f.repo.payments[other.ID].RequesterID = 7

	recent, err := f.svc.RecentPayments(context.Background(), 42, 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(recent) != 5 || recent[0].ID != 7 {
		t.Fatalf("unexpected recent payments: %d first=%d", len(recent), recent[0].ID)
	}

	all, err := f.svc.ListPayments(context.Background(), &types.ListPaymentsRequest{Status: entity.StatusPending})
	if err != nil || len(all) != 8 {
		t.Fatalf("unexpected list result: %d, %v", len(all), err)
	}

	if _, err := f.svc.RecentPayments(context.Background(), 0, 5); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestReconcileAppliesGatewayStatus(t *testing.T) {
	f := newServiceFixture(config.InstamojoConfig{})
	paid := f.seed("https://gw/@shop/req_paid", "req_paid")
	unpaid := f.seed("https://gw/@shop/req_open", "req_open")
	f.gateway.requests["req_paid"] = &gateway.PaymentDetails{PaymentID: "MOJO9", PaymentRequestID: "req_paid", Status: "Credit"}

	if err := f.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	gotPaid, _ := f.repo.FindByID(context.Background(), paid.ID)
	if gotPaid.Status != "Credit" || gotPaid.ProviderPaymentID == nil || *gotPaid.ProviderPaymentID != "MOJO9" {
		t.Fatalf("unexpected reconciled payment: %+v", gotPaid)
	}
	gotUnpaid, _ := f.repo.FindByID(context.Background(), unpaid.ID)
	if gotUnpaid.Status != entity.StatusPending {
		t.Fatalf("expected unpaid payment to stay pending, got %s", gotUnpaid.Status)
	}
	if !gotUnpaid.UpdatedAt.After(unpaid.UpdatedAt) {
		t.Fatal("expected unchanged payment to be touched")
	}

	if len(f.publisher.changes) != 1 || f.publisher.changes[0].Origin != "reconcile" {
		t.Fatalf("expected one reconcile status change, got %+v", f.publisher.changes)
	}
	if len(f.notifier.chats) != 1 || f.notifier.chats[0] != 4242 {
		t.Fatalf("expected requester notified, got %v", f.notifier.chats)
	}
}

func TestReconcileKeepsFirstGatewayError(t *testing.T) {
	f := newServiceFixture(config.InstamojoConfig{})
	f.seed("https://gw/@shop/req_1", "req_1")
	f.gateway.requestErr = &gateway.Error{Kind: gateway.KindTransport, Op: "get payment request", Err: errors.New("timeout")}

	err := f.svc.RunReconcileBatch(context.Background())
	if gateway.KindOf(err) != gateway.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}
