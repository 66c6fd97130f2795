package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-tg-payments/app/factory"
)

type Config struct {
	Token       string
	APIEndpoint string
	HTTPTimeout time.Duration
}

// Client wraps the Bot API. The underlying SDK takes no context, so the http client
// timeout bounds every call.
type Client struct {
	api    *tgbotapi.BotAPI
	logger logrus.FieldLogger
}

// NewClient builds the client without contacting Telegram. Call Authorize to check the
// token and learn the bot identity.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	api.SetAPIEndpoint(endpoint)

	return &Client{api: api, logger: factory.NewModuleLogger("telegram-client")}, nil
}

// Authorize calls getMe. The client stays usable when it fails.
func (c *Client) Authorize() error {
	self, err := c.api.GetMe()
	if err != nil {
		return err
	}
	c.api.Self = self
	c.logger.WithField("bot", self.UserName).Info("Telegram bot authorized")
	return nil
}

func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// RegisterWebhook points Telegram at webhookURL. secret is echoed back by Telegram in
// the X-Telegram-Bot-Api-Secret-Token header when set.
func (c *Client) RegisterWebhook(webhookURL, secret string) error {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return errors.New("webhook url is empty")
	}

	params := tgbotapi.Params{"url": webhookURL}
	if secret = strings.TrimSpace(secret); secret != "" {
		params["secret_token"] = secret
	}

	resp, err := c.api.MakeRequest("setWebhook", params)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return errors.New(resp.Description)
	}
	return nil
}

func (c *Client) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	return c.api.GetWebhookInfo()
}

func (c *Client) BotUsername() string {
	return c.api.Self.UserName
}

func ParseUpdate(body []byte) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, err
	}
	return &update, nil
}
