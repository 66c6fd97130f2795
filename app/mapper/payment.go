package mapper

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vibast-solutions/ms-go-tg-payments/app/entity"
	"github.com/vibast-solutions/ms-go-tg-payments/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	return &types.Payment{
		Id:                item.ID,
		RequesterId:       item.RequesterID,
		ChatId:            item.ChatID,
		RequesterName:     item.RequesterName,
		RequesterEmail:    item.RequesterEmail,
		Amount:            item.Amount,
		Purpose:           item.Purpose,
		PaymentLink:       item.PaymentLink,
		ProviderRequestId: derefString(item.ProviderRequestID),
		ProviderPaymentId: derefString(item.ProviderPaymentID),
		Status:            item.Status,
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentsToResponse(items []*entity.Payment) []*types.Payment {
	result := make([]*types.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		result = append(result, PaymentToResponse(item))
	}
	return result
}

// CommandFromUpdate extracts a bot command. ok is false for anything that is not a
// command message with a sender.
func CommandFromUpdate(update *tgbotapi.Update) (*types.ChatCommand, bool) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil, false
	}
	msg := update.Message
	if !msg.IsCommand() {
		return nil, false
	}

	fullName := strings.TrimSpace(strings.TrimSpace(msg.From.FirstName) + " " + strings.TrimSpace(msg.From.LastName))

	return &types.ChatCommand{
		ChatID:   msg.Chat.ID,
		UserID:   msg.From.ID,
		FullName: fullName,
		Username: strings.TrimSpace(msg.From.UserName),
		Name:     strings.ToLower(msg.Command()),
		Args:     strings.Fields(msg.CommandArguments()),
	}, true
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
