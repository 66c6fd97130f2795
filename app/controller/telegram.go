package controller

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-tg-payments/app/bot"
	"github.com/vibast-solutions/ms-go-tg-payments/app/factory"
	"github.com/vibast-solutions/ms-go-tg-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-tg-payments/app/telegram"
	"github.com/vibast-solutions/ms-go-tg-payments/app/types"
)

const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

type TelegramController struct {
	dispatcher    *bot.Dispatcher
	webhookSecret string
	logger        logrus.FieldLogger
}

func NewTelegramController(dispatcher *bot.Dispatcher, webhookSecret string) *TelegramController {
	return &TelegramController{
		dispatcher:    dispatcher,
		webhookSecret: strings.TrimSpace(webhookSecret),
		logger:        factory.NewModuleLogger("telegram-controller"),
	}
}

// HandleUpdate serves POST /telegram_webhook. Telegram redelivers anything that is
// not acknowledged, so every authenticated update gets {"success": true}.
func (c *TelegramController) HandleUpdate(ctx echo.Context) error {
	if c.webhookSecret != "" {
		provided := ctx.Request().Header.Get(HeaderTelegramSecret)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(c.webhookSecret)) != 1 {
			return writeError(ctx, http.StatusUnauthorized, "unauthorized")
		}
	}

	logger := factory.LoggerWithContext(c.logger, ctx)
	ack := &types.WebhookAckResponse{Success: true}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		logger.WithError(err).Warn("Failed to read telegram update")
		return ctx.JSON(http.StatusOK, ack)
	}

	update, err := telegram.ParseUpdate(body)
	if err != nil {
		logger.WithError(err).Warn("Malformed telegram update")
		return ctx.JSON(http.StatusOK, ack)
	}

	cmd, ok := mapper.CommandFromUpdate(update)
	if !ok {
		return ctx.JSON(http.StatusOK, ack)
	}

	if err := c.dispatcher.Dispatch(ctx.Request().Context(), cmd); err != nil {
		logger.WithError(err).
			WithField("update_id", update.UpdateID).
			WithField("command", cmd.Name).
			Warn("Telegram command dispatch failed")
	}

	return ctx.JSON(http.StatusOK, ack)
}
