package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notify-gateway/internal/notifications"
)

func testRequest() *Request {
	return &Request{
		TransactionID: "txn-1",
		UserID:        "user-1",
		Recipient:     "user@example.com",
		Subject:       "Order shipped",
		Content:       "Your order is on the way",
	}
}

func TestMockProviderOutcomes(t *testing.T) {
	ctx := context.Background()

	always := NewMockProviderWithRates(notifications.ChannelEmail, 1, 0, 0)
	res, err := always.Send(ctx, testRequest())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.MessageID == "" || res.Provider != "mock-EMAIL" {
		t.Errorf("unexpected result: %+v", res)
	}

	never := NewMockProviderWithRates(notifications.ChannelSMS, 0, 0, 0)
	_, err = never.Send(ctx, testRequest())
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.StatusCode != 400 {
		t.Errorf("expected permanent failure status 400, got %d", perr.StatusCode)
	}

	flaky := NewMockProviderWithRates(notifications.ChannelSMS, 0, 1, 0)
	_, err = flaky.Send(ctx, testRequest())
	if !errors.As(err, &perr) || perr.ErrorCode != "ETIMEDOUT" {
		t.Errorf("expected ETIMEDOUT temporary failure, got %v", err)
	}
}

func TestMockProviderHonorsContext(t *testing.T) {
	p := NewMockProviderWithRates(notifications.ChannelEmail, 1, 0, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Send(ctx, testRequest())
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.ErrorCode != "ETIMEDOUT" {
		t.Errorf("expected ETIMEDOUT on context timeout, got %q", perr.ErrorCode)
	}
}

func TestEmailProviderSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-123" {
			t.Errorf("unexpected auth header %q", auth)
		}
		w.Header().Set("X-Message-Id", "msg-abc")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	p := NewEmailProvider(EmailConfig{APIKey: "key-123", From: "no-reply@example.com", Endpoint: server.URL}, server.Client())

	res, err := p.Send(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.MessageID != "msg-abc" || res.StatusCode != http.StatusAccepted {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEmailProviderErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"errors":[{"message":"service unavailable"}]}`))
	}))
	defer server.Close()

	p := NewEmailProvider(EmailConfig{APIKey: "k", From: "f@example.com", Endpoint: server.URL}, server.Client())

	_, err := p.Send(context.Background(), testRequest())
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", perr.StatusCode)
	}
	if perr.RawResponse == "" {
		t.Error("expected raw response captured")
	}
}

func TestSMSProviderParsesTwilioError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if to := r.PostForm.Get("To"); to != "+15551234" {
			t.Errorf("unexpected To %q", to)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": 21211, "message": "The 'To' number is not a valid phone number.", "status": 400}`))
	}))
	defer server.Close()

	cfg := TwilioConfig{AccountSID: "AC123", AuthToken: "tok", From: "+15550000", Endpoint: server.URL}
	p := NewSMSProvider(cfg, server.Client())

	req := testRequest()
	req.Recipient = "+15551234"
	_, err := p.Send(context.Background(), req)

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", perr.StatusCode)
	}
	if perr.Message != "The 'To' number is not a valid phone number." {
		t.Errorf("expected parsed twilio message, got %q", perr.Message)
	}
}

func TestWhatsAppProviderPrefixesAddresses(t *testing.T) {
	var gotTo, gotFrom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM123"}`))
	}))
	defer server.Close()

	cfg := TwilioConfig{AccountSID: "AC123", AuthToken: "tok", From: "+15550000", Endpoint: server.URL}
	p := NewWhatsAppProvider(cfg, server.Client())

	req := testRequest()
	req.Recipient = "+15551234"
	res, err := p.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.MessageID != "SM123" {
		t.Errorf("expected SID from response, got %q", res.MessageID)
	}
	if gotTo != "whatsapp:+15551234" || gotFrom != "whatsapp:+15550000" {
		t.Errorf("expected whatsapp prefixes, got to=%q from=%q", gotTo, gotFrom)
	}
}

func TestPushProviderBodyLevelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"InvalidRegistration"}]}`))
	}))
	defer server.Close()

	p := NewPushProvider(PushConfig{ServerKey: "srv-key", Endpoint: server.URL}, server.Client())

	_, err := p.Send(context.Background(), testRequest())
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Message != "InvalidRegistration" {
		t.Errorf("expected FCM error surfaced, got %q", perr.Message)
	}
}

func TestReadyChecks(t *testing.T) {
	client := &http.Client{}

	if NewEmailProvider(EmailConfig{}, client).Ready() {
		t.Error("expected email provider without credentials to be unready")
	}
	if !NewEmailProvider(EmailConfig{APIKey: "k", From: "f@example.com"}, client).Ready() {
		t.Error("expected configured email provider to be ready")
	}
	if NewSMSProvider(TwilioConfig{AccountSID: "AC"}, client).Ready() {
		t.Error("expected partially configured sms provider to be unready")
	}
	if !NewPushProvider(PushConfig{ServerKey: "k"}, client).Ready() {
		t.Error("expected configured push provider to be ready")
	}
}

func TestTransportErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "ETIMEDOUT"},
		{errors.New("dial tcp 127.0.0.1:9999: connect: connection refused"), "ECONNREFUSED"},
		{errors.New("dial tcp: lookup api.invalid: no such host"), "ENOTFOUND"},
		{errors.New("read tcp: connection reset by peer"), "ECONNRESET"},
		{errors.New("something else entirely"), ""},
	}
	for _, c := range cases {
		if got := transportErrorCode(c.err); got != c.want {
			t.Errorf("transportErrorCode(%v): expected %q, got %q", c.err, c.want, got)
		}
	}
}

func TestRegistryResolution(t *testing.T) {
	email := NewMockProvider(notifications.ChannelEmail)
	registry := NewRegistry(email)

	if p, ok := registry.For(notifications.ChannelEmail); !ok || p != Provider(email) {
		t.Error("expected registered provider back")
	}
	if _, ok := registry.For(notifications.ChannelSMS); ok {
		t.Error("expected missing channel to report not ok")
	}
	if registry.Ready(notifications.ChannelSMS) {
		t.Error("expected unregistered channel to be unready")
	}
	if !registry.Ready(notifications.ChannelEmail) {
		t.Error("expected mock channel to be ready")
	}
}
