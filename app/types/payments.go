package types

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = int32(100)
	maxListLimit     = int32(500)
)

type GetPaymentRequest struct {
	Id uint64
}

func (r *GetPaymentRequest) GetId() uint64 {
	if r == nil {
		return 0
	}
	return r.Id
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetPaymentRequest{Id: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid payment id")
	}
	return nil
}

type ListPaymentsRequest struct {
	RequesterId int64
	Status      string
	Limit       int32
	Offset      int32
}

func (r *ListPaymentsRequest) GetRequesterId() int64 {
	if r == nil {
		return 0
	}
	return r.RequesterId
}

func (r *ListPaymentsRequest) GetStatus() string {
	if r == nil {
		return ""
	}
	return r.Status
}

func (r *ListPaymentsRequest) GetLimit() int32 {
	if r == nil {
		return 0
	}
	return r.Limit
}

func (r *ListPaymentsRequest) GetOffset() int32 {
	if r == nil {
		return 0
	}
	return r.Offset
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		Status: strings.TrimSpace(ctx.QueryParam("status")),
		Limit:  defaultListLimit,
	}

	if requesterRaw := strings.TrimSpace(ctx.QueryParam("requester_id")); requesterRaw != "" {
		requesterID, err := strconv.ParseInt(requesterRaw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.RequesterId = requesterID
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	if r.GetLimit() <= 0 || r.GetLimit() > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.GetRequesterId() < 0 {
		return errors.New("requester_id must be >= 0")
	}
	return nil
}

// GatewayCallbackRequest is the browser redirect Instamojo sends after checkout.
type GatewayCallbackRequest struct {
	PaymentId        string
	PaymentStatus    string
	PaymentRequestId string
	Payload          string
}

func (r *GatewayCallbackRequest) GetPaymentId() string {
	if r == nil {
		return ""
	}
	return r.PaymentId
}

func (r *GatewayCallbackRequest) GetPaymentStatus() string {
	if r == nil {
		return ""
	}
	return r.PaymentStatus
}

func (r *GatewayCallbackRequest) GetPaymentRequestId() string {
	if r == nil {
		return ""
	}
	return r.PaymentRequestId
}

func (r *GatewayCallbackRequest) GetPayload() string {
	if r == nil {
		return ""
	}
	return r.Payload
}

func NewGatewayCallbackRequestFromContext(ctx echo.Context) (*GatewayCallbackRequest, error) {
	return &GatewayCallbackRequest{
		PaymentId:        strings.TrimSpace(ctx.QueryParam("payment_id")),
		PaymentStatus:    strings.TrimSpace(ctx.QueryParam("payment_status")),
		PaymentRequestId: strings.TrimSpace(ctx.QueryParam("payment_request_id")),
		Payload:          ctx.QueryString(),
	}, nil
}

func (r *GatewayCallbackRequest) Validate() error {
	if strings.TrimSpace(r.GetPaymentId()) == "" {
		return errors.New("payment_id is required")
	}
	return nil
}

// GatewayWebhookRequest is the signed server-to-server notification.
type GatewayWebhookRequest struct {
	Fields  url.Values
	Payload string
}

func (r *GatewayWebhookRequest) GetFields() url.Values {
	if r == nil {
		return nil
	}
	return r.Fields
}

func (r *GatewayWebhookRequest) GetPayload() string {
	if r == nil {
		return ""
	}
	return r.Payload
}

func NewGatewayWebhookRequestFromContext(ctx echo.Context) (*GatewayWebhookRequest, error) {
	fields, err := ctx.FormParams()
	if err != nil {
		return nil, err
	}
	return &GatewayWebhookRequest{
		Fields:  fields,
		Payload: fields.Encode(),
	}, nil
}

func (r *GatewayWebhookRequest) Validate() error {
	if len(r.GetFields()) == 0 {
		return errors.New("webhook payload is empty")
	}
	if strings.TrimSpace(r.GetFields().Get("mac")) == "" {
		return errors.New("mac is required")
	}
	return nil
}

// CreatePaymentLinkRequest carries a /pay command after tokenization.
type CreatePaymentLinkRequest struct {
	RequesterId    int64
	ChatId         int64
	RequesterName  string
	RequesterEmail string
	Amount         string
	Purpose        string
}

func (r *CreatePaymentLinkRequest) GetRequesterId() int64 {
	if r == nil {
		return 0
	}
	return r.RequesterId
}

func (r *CreatePaymentLinkRequest) GetChatId() int64 {
	if r == nil {
		return 0
	}
	return r.ChatId
}

func (r *CreatePaymentLinkRequest) GetRequesterName() string {
	if r == nil {
		return ""
	}
	return r.RequesterName
}

func (r *CreatePaymentLinkRequest) GetRequesterEmail() string {
	if r == nil {
		return ""
	}
	return r.RequesterEmail
}

func (r *CreatePaymentLinkRequest) GetAmount() string {
	if r == nil {
		return ""
	}
	return r.Amount
}

func (r *CreatePaymentLinkRequest) GetPurpose() string {
	if r == nil {
		return ""
	}
	return r.Purpose
}

// ChatCommand is a bot command extracted from a Telegram update.
type ChatCommand struct {
	ChatID   int64
	UserID   int64
	FullName string
	Username string
	Name     string
	Args     []string
}
