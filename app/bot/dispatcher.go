package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
	"github.com/vibast-solutions/ms-go-tg-payments/app/factory"
	"github.com/vibast-solutions/ms-go-tg-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-tg-payments/app/service"
	"github.com/vibast-solutions/ms-go-tg-payments/app/types"
)

const (
	WelcomeText      = "Welcome to Consult Zone India Telegram Bot! Use /pay <amount> <purpose> to generate payment link."
	PayUsageText     = "Usage: /pay <amount> <purpose>"
	PayFailedText    = "Error creating payment link!"
	StatusEmptyText  = "You have no payments yet."
	StatusFailedText = "Could not load your payments right now."

	defaultEmailDomain = "telegram.me"
	statusPageSize     = 5
)

// Messenger sends a reply into a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Dispatcher struct {
	paymentService *service.PaymentService
	messenger      Messenger
	emailDomain    string
	metrics        *metrics.Metrics
	logger         logrus.FieldLogger
}

func NewDispatcher(paymentService *service.PaymentService, messenger Messenger, emailDomain string) *Dispatcher {
	emailDomain = strings.TrimSpace(emailDomain)
	if emailDomain == "" {
		emailDomain = defaultEmailDomain
	}

	return &Dispatcher{
		paymentService: paymentService,
		messenger:      messenger,
		emailDomain:    emailDomain,
		logger:         factory.NewModuleLogger("bot-dispatcher"),
	}
}

func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch runs one chat command. Unknown commands are ignored. The returned error
// only reports a reply that could not be delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *types.ChatCommand) error {
	if cmd == nil {
		return nil
	}

	switch cmd.Name {
	case "start":
		d.metrics.Command("start", metrics.OutcomeSuccess)
		return d.reply(ctx, cmd, WelcomeText)
	case "pay":
		return d.pay(ctx, cmd)
	case "status":
		return d.status(ctx, cmd)
	default:
		return nil
	}
}

func (d *Dispatcher) pay(ctx context.Context, cmd *types.ChatCommand) error {
	if len(cmd.Args) < 2 {
		d.metrics.Command("pay", "usage")
		return d.reply(ctx, cmd, PayUsageText)
	}

	payment, err := d.paymentService.CreatePaymentLink(ctx, &types.CreatePaymentLinkRequest{
		RequesterId:    cmd.UserID,
		ChatId:         cmd.ChatID,
		RequesterName:  cmd.FullName,
		RequesterEmail: d.requesterEmail(cmd),
		Amount:         cmd.Args[0],
		Purpose:        strings.Join(cmd.Args[1:], " "),
	})
	if err != nil {
		d.metrics.Command("pay", metrics.OutcomeError)
		d.logger.WithError(err).WithField("user_id", cmd.UserID).Warn("Payment link creation failed")
		return d.reply(ctx, cmd, PayFailedText)
	}

	d.metrics.Command("pay", metrics.OutcomeSuccess)
	return d.reply(ctx, cmd, "Payment Link: "+payment.PaymentLink)
}

func (d *Dispatcher) status(ctx context.Context, cmd *types.ChatCommand) error {
	items, err := d.paymentService.RecentPayments(ctx, cmd.UserID, statusPageSize)
	if err != nil {
		d.metrics.Command("status", metrics.OutcomeError)
		d.logger.WithError(err).WithField("user_id", cmd.UserID).Warn("Loading recent payments failed")
		return d.reply(ctx, cmd, StatusFailedText)
	}

	d.metrics.Command("status", metrics.OutcomeSuccess)
	return d.reply(ctx, cmd, FormatStatus(items))
}

// requesterEmail derives the buyer email from the Telegram handle. It is never verified.
func (d *Dispatcher) requesterEmail(cmd *types.ChatCommand) string {
	handle := strings.TrimPrefix(strings.TrimSpace(cmd.Username), "@")
	if handle == "" {
		handle = "user" + strconv.FormatInt(cmd.UserID, 10)
	}
	return handle + "@" + d.emailDomain
}

func (d *Dispatcher) reply(ctx context.Context, cmd *types.ChatCommand, text string) error {
	if d.messenger == nil {
		return nil
	}
	return d.messenger.SendText(ctx, cmd.ChatID, text)
}

// FormatStatus renders recent payments and the total still pending. Amounts that are
// not numbers are listed but left out of the total.
func FormatStatus(items []*entity.Payment) string {
	if len(items) == 0 {
		return StatusEmptyText
	}

	pending := decimal.Zero
	var b strings.Builder
	b.WriteString("Your recent payments:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "#%d %s for %s: %s\n", item.ID, item.Amount, item.Purpose, item.Status)
		if !item.IsPending() {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(item.Amount))
		if err != nil {
			continue
		}
		pending = pending.Add(amount)
	}
	fmt.Fprintf(&b, "Pending total: %s", pending.StringFixed(2))

	return b.String()
}
