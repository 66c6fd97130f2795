package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the telegram webhook",
}

var webhookRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Point telegram at WEBHOOK_BASE_URL/telegram_webhook",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		client := mustTelegramClient(cfg.Telegram)

		webhookURL := cfg.App.TelegramWebhookURL()
		if webhookURL == "" {
			logrus.Fatal("WEBHOOK_BASE_URL environment variable is required")
		}
		if err := client.RegisterWebhook(webhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logrus.WithError(err).WithField("url", webhookURL).Fatal("Failed to register telegram webhook")
		}
		logrus.WithField("url", webhookURL).Info("Telegram webhook registered")
	},
}

var webhookInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the webhook telegram currently delivers to",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		client := mustTelegramClient(cfg.Telegram)

		info, err := client.WebhookInfo()
		if err != nil {
			logrus.WithError(err).Fatal("Failed to load telegram webhook info")
		}
		logrus.WithFields(logrus.Fields{
			"url":                  info.URL,
			"pending_update_count": info.PendingUpdateCount,
			"last_error_message":   info.LastErrorMessage,
			"last_error_date":      info.LastErrorDate,
		}).Info("Telegram webhook info")
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookRegisterCmd)
	webhookCmd.AddCommand(webhookInfoCmd)
}
