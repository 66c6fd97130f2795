package gateway

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestGateway(serverURL string) *InstamojoGateway {
	return NewInstamojoGateway(InstamojoConfig{
		APIKey:      "api-key",
		AuthToken:   "auth-token",
		Endpoint:    serverURL + "/api/1.1/",
		RedirectURL: "https://bot.example/instamojo_callback",
		WebhookURL:  "https://bot.example/instamojo_webhook",
		PrivateSalt: "salt",
	})
}

func TestCreatePaymentRequestSendsPayloadAndReturnsLongURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/1.1/payment-requests/" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "api-key" || r.Header.Get("X-Auth-Token") != "auth-token" {
			t.Fatalf("missing auth headers: %v", r.Header)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		expected := map[string]string{
			"purpose":                 "Consulting session",
			"amount":                  "500",
			"buyer_name":              "Jane Doe",
			"email":                   "janedoe@telegram.me",
			"redirect_url":            "https://bot.example/instamojo_callback",
			"webhook":                 "https://bot.example/instamojo_webhook",
			"send_email":              "true",
			"allow_repeated_payments": "false",
		}
		for k, v := range expected {
			if got := r.PostForm.Get(k); got != v {
				t.Fatalf("unexpected %s: %q", k, got)
			}
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"payment_request":{"id":"req_1","longurl":"https://www.instamojo.com/@shop/req_1"}}`))
	}))
	defer server.Close()

	out, err := newTestGateway(server.URL).CreatePaymentRequest(context.Background(), &CreateInput{
		Amount:     "500",
		Purpose:    "Consulting session",
		BuyerName:  "Jane Doe",
		BuyerEmail: "janedoe@telegram.me",
	})
	if err != nil {
		t.Fatalf("create payment request failed: %v", err)
	}
	if out.LongURL != "https://www.instamojo.com/@shop/req_1" || out.PaymentRequestID != "req_1" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestCreatePaymentRequestOmitsWebhookWithoutSalt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("webhook") != "" {
			t.Fatal("expected no webhook without private salt")
		}
		_, _ = w.Write([]byte(`{"payment_request":{"id":"req_1","longurl":"https://gw/req_1"}}`))
	}))
	defer server.Close()

	gw := NewInstamojoGateway(InstamojoConfig{
		APIKey:     "api-key",
		AuthToken:  "auth-token",
		Endpoint:   server.URL + "/",
		WebhookURL: "https://bot.example/instamojo_webhook",
	})
	if _, err := gw.CreatePaymentRequest(context.Background(), &CreateInput{Amount: "1", Purpose: "x"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
}

func TestCreatePaymentRequestFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Kind
		closeIt bool
	}{
		{name: "missing longurl", status: http.StatusCreated, body: `{"success":true,"payment_request":{"id":"req_1"}}`, want: KindSchema},
		{name: "malformed json", status: http.StatusOK, body: `not json`, want: KindSchema},
		{name: "rejected", status: http.StatusBadRequest, body: `{"success":false,"message":{"amount":["bad"]}}`, want: KindStatus},
		{name: "network", closeIt: true, want: KindTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			gw := newTestGateway(server.URL)
			if tc.closeIt {
				server.Close()
			} else {
				defer server.Close()
			}

			_, err := gw.CreatePaymentRequest(context.Background(), &CreateInput{Amount: "abc", Purpose: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != tc.want {
				t.Fatalf("expected kind %s, got %s (%v)", tc.want, KindOf(err), err)
			}
		})
	}
}

func TestCreatePaymentRequestRequiresCredentials(t *testing.T) {
	gw := NewInstamojoGateway(InstamojoConfig{Endpoint: "http://127.0.0.1:1/"})
	_, err := gw.CreatePaymentRequest(context.Background(), &CreateInput{Amount: "1", Purpose: "x"})
	if KindOf(err) != KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestGetPaymentParsesStatusAndRequestRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1.1/payments/MOJO123/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"payment":{"payment_id":"MOJO123","status":"Credit","payment_request":"https://api.instamojo.com/v2/payment_requests/req_1/"}}`))
	}))
	defer server.Close()

	details, err := newTestGateway(server.URL).GetPayment(context.Background(), "MOJO123")
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if details.Status != "Credit" || details.PaymentRequestID != "req_1" || details.PaymentID != "MOJO123" {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestGetPaymentRequestPrefersCredit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payment_request":{"id":"req_1","payments":[{"payment_id":"MOJO1","status":"Failed"},{"payment_id":"MOJO2","status":"Credit"},{"payment_id":"MOJO3","status":"Failed"}]}}`))
	}))
	defer server.Close()

	details, err := newTestGateway(server.URL).GetPaymentRequest(context.Background(), "req_1")
	if err != nil {
		t.Fatalf("get payment request failed: %v", err)
	}
	if details.Status != "Credit" || details.PaymentID != "MOJO2" {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestGetPaymentRequestUnpaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payment_request":{"id":"req_1","payments":[]}}`))
	}))
	defer server.Close()

	details, err := newTestGateway(server.URL).GetPaymentRequest(context.Background(), "req_1")
	if err != nil {
		t.Fatalf("get payment request failed: %v", err)
	}
	if details.Status != "" {
		t.Fatalf("expected empty status, got %q", details.Status)
	}
}

func signedWebhookFields(salt string) url.Values {
	fields := url.Values{}
	fields.Set("payment_id", "MOJO123")
	fields.Set("payment_request_id", "req_1")
	fields.Set("status", "Credit")
	fields.Set("Amount", "500.00")
	fields.Set("mac", hex.EncodeToString(computeMAC(fields, salt)))
	return fields
}

func TestVerifyAndParseWebhook(t *testing.T) {
	gw := newTestGateway("http://unused")

	event, err := gw.VerifyAndParseWebhook(signedWebhookFields("salt"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.PaymentID != "MOJO123" || event.PaymentRequestID != "req_1" || event.Status != "Credit" {
		t.Fatalf("unexpected event: %+v", event)
	}

	tampered := signedWebhookFields("salt")
	tampered.Set("status", "Failed")
	if _, err := gw.VerifyAndParseWebhook(tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered payload, got %v", err)
	}

	if _, err := gw.VerifyAndParseWebhook(signedWebhookFields("other-salt")); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for wrong salt, got %v", err)
	}
}

func TestComputeMACOrdersKeysCaseInsensitively(t *testing.T) {
	a := url.Values{}
	a.Set("b", "2")
	a.Set("A", "1")
	b := url.Values{}
	b.Set("A", "1")
	b.Set("b", "2")
	b.Set("mac", "ignored")

	if hex.EncodeToString(computeMAC(a, "s")) != hex.EncodeToString(computeMAC(b, "s")) {
		t.Fatal("expected mac to ignore key insertion order and the mac field")
	}
}

func TestJoinEndpoint(t *testing.T) {
	if got := joinEndpoint("https://www.instamojo.com/api/1.1/", "payment-requests/"); got != "https://www.instamojo.com/api/1.1/payment-requests/" {
		t.Fatalf("unexpected endpoint: %s", got)
	}
	if got := joinEndpoint("https://test.instamojo.com/api/1.1", "/payments/x/"); got != "https://test.instamojo.com/api/1.1/payments/x/" {
		t.Fatalf("unexpected endpoint: %s", got)
	}
}
