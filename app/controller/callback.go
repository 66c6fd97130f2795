package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-tg-payments/app/factory"
	"github.com/vibast-solutions/ms-go-tg-payments/app/service"
	"github.com/vibast-solutions/ms-go-tg-payments/app/types"
)

const callbackAckText = "Payment updated"

type CallbackController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewCallbackController(paymentService *service.PaymentService) *CallbackController {
	return &CallbackController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("callback-controller"),
	}
}

// HandleRedirect serves GET /instamojo_callback.
func (c *CallbackController) HandleRedirect(ctx echo.Context) error {
	req, err := types.NewGatewayCallbackRequestFromContext(ctx)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return ctx.String(http.StatusBadRequest, err.Error())
	}

	updated, err := c.paymentService.HandleGatewayCallback(ctx.Request().Context(), req)
	if err != nil {
		return c.writeCallbackError(ctx, err, http.StatusForbidden)
	}

	factory.LoggerWithContext(c.logger, ctx).
		WithField("payment_id", req.GetPaymentId()).
		WithField("updated", len(updated)).
		Info("Gateway redirect processed")

	return ctx.String(http.StatusOK, callbackAckText)
}

// HandleWebhook serves POST /instamojo_webhook.
func (c *CallbackController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewGatewayWebhookRequestFromContext(ctx)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return ctx.String(http.StatusBadRequest, err.Error())
	}

	updated, err := c.paymentService.HandleGatewayWebhook(ctx.Request().Context(), req)
	if err != nil {
		return c.writeCallbackError(ctx, err, http.StatusBadRequest)
	}

	factory.LoggerWithContext(c.logger, ctx).
		WithField("payment_request_id", req.GetFields().Get("payment_request_id")).
		WithField("updated", len(updated)).
		Info("Gateway webhook processed")

	return ctx.String(http.StatusOK, callbackAckText)
}

func (c *CallbackController) writeCallbackError(ctx echo.Context, err error, rejectedStatus int) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return ctx.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCallbackRejected):
		return ctx.String(rejectedStatus, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle gateway callback failed")
		return ctx.String(http.StatusInternalServerError, "internal server error")
	}
}
