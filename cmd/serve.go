package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-tg-payments/app/bot"
	"github.com/vibast-solutions/ms-go-tg-payments/app/controller"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server receiving Telegram updates and Instamojo callbacks.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication(true)
	defer cleanup()

	dispatcher := bot.NewDispatcher(app.paymentService, app.telegram, app.cfg.Telegram.EmailDomain).
		WithMetrics(app.metrics)

	e := setupHTTPServer(app,
		controller.NewPaymentController(app.paymentService),
		controller.NewCallbackController(app.paymentService),
		controller.NewTelegramController(dispatcher, app.cfg.Telegram.WebhookSecret),
	)

	registerTelegramWebhook(app)

	go func() {
		httpAddr := net.JoinHostPort(app.cfg.HTTP.Host, app.cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

// registerTelegramWebhook runs once at startup. A failure is logged and the server
// keeps running.
func registerTelegramWebhook(app *application) {
	webhookURL := app.cfg.App.TelegramWebhookURL()
	if webhookURL == "" {
		logrus.Warn("WEBHOOK_BASE_URL not set, skipping telegram webhook registration")
		return
	}

	if err := app.telegram.RegisterWebhook(webhookURL, app.cfg.Telegram.WebhookSecret); err != nil {
		logrus.WithError(err).WithField("url", webhookURL).Error("Failed to register telegram webhook")
		return
	}
	logrus.WithField("url", webhookURL).Info("Telegram webhook registered")
}

func setupHTTPServer(
	app *application,
	paymentController *controller.PaymentController,
	callbackController *controller.CallbackController,
	telegramController *controller.TelegramController,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	e.GET("/health", paymentController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	e.POST("/telegram_webhook", telegramController.HandleUpdate)
	e.GET("/instamojo_callback", callbackController.HandleRedirect)
	e.POST("/instamojo_webhook", callbackController.HandleWebhook)

	payments := e.Group("/payments", controller.RequireAPIKey(app.cfg.App.APIKey))
	payments.GET("", paymentController.ListPayments)
	payments.GET("/:id", paymentController.GetPayment)

	return e
}
