package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"notify-gateway/internal/dispatch"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/preferences"
	"notify-gateway/internal/queue"
	"notify-gateway/internal/rate"
)

type fakeSubmitter struct {
	receipt  *dispatch.Receipt
	err      error
	bulk     *dispatch.BulkResult
	lastReq  *notifications.CreateRequest
	bulkSize int
}

func (f *fakeSubmitter) Submit(ctx context.Context, req *notifications.CreateRequest) (*dispatch.Receipt, error) {
	f.lastReq = req
	return f.receipt, f.err
}

func (f *fakeSubmitter) SubmitBulk(ctx context.Context, reqs []*notifications.CreateRequest) *dispatch.BulkResult {
	f.bulkSize = len(reqs)
	return f.bulk
}

type fakeAdminStore struct {
	notifications.Store

	listFilter   *notifications.Filter
	listResult   []*notifications.Transaction
	failedFilter *notifications.FailedFilter
	txn          *notifications.Transaction
	logs         []*notifications.ErrorLog
	counts       map[notifications.Status]int64
}

func (s *fakeAdminStore) List(ctx context.Context, f notifications.Filter) ([]*notifications.Transaction, error) {
	s.listFilter = &f
	return s.listResult, nil
}

func (s *fakeAdminStore) GetByID(ctx context.Context, id uuid.UUID) (*notifications.Transaction, error) {
	if s.txn == nil || s.txn.ID != id {
		return nil, notifications.ErrNotFound
	}
	return s.txn, nil
}

func (s *fakeAdminStore) ListErrorLogs(ctx context.Context, id uuid.UUID) ([]*notifications.ErrorLog, error) {
	return s.logs, nil
}

func (s *fakeAdminStore) ListFailedAttempts(ctx context.Context, f notifications.FailedFilter) ([]*notifications.FailedAttempt, error) {
	s.failedFilter = &f
	return nil, nil
}

func (s *fakeAdminStore) StatusCounts(ctx context.Context, userID string) (map[notifications.Status]int64, error) {
	return s.counts, nil
}

func (s *fakeAdminStore) ErrorAnalytics(ctx context.Context, from, to *time.Time) (*notifications.ErrorAnalytics, error) {
	return &notifications.ErrorAnalytics{TotalErrors: 7}, nil
}

func (s *fakeAdminStore) ChannelAnalytics(ctx context.Context, from, to *time.Time) ([]*notifications.ChannelStats, error) {
	return []*notifications.ChannelStats{{Channel: notifications.ChannelEmail, Total: 10, Sent: 9, SuccessRate: 90}}, nil
}

type fakePrefsStore struct {
	preferences.Store

	prefs      *preferences.Preferences
	updateSeen bool
}

func (s *fakePrefsStore) Get(ctx context.Context, userID string) (*preferences.Preferences, error) {
	if s.prefs != nil {
		return s.prefs, nil
	}
	return preferences.Defaults(userID), nil
}

func (s *fakePrefsStore) Update(ctx context.Context, userID string, req *preferences.UpdateRequest) (*preferences.Preferences, error) {
	s.updateSeen = true
	return preferences.Defaults(userID), nil
}

type fakeStatsBroker struct {
	queue.Broker
}

func (b *fakeStatsBroker) Stats(ctx context.Context, name string) (*queue.Stats, error) {
	return &queue.Stats{Queue: name, Waiting: 2}, nil
}

func newTestApp(h *Handlers) *fiber.App {
	app := fiber.New()
	app.Post("/notifications/send", h.SendNotification)
	app.Post("/notifications/send-bulk", h.SendBulkNotifications)
	app.Get("/users/:userId/preferences", h.GetPreferences)
	app.Put("/users/:userId/preferences", h.UpdatePreferences)
	app.Get("/admin/dashboard", h.Dashboard)
	app.Get("/admin/transactions", h.ListTransactions)
	app.Get("/admin/transactions/:transactionId", h.GetTransaction)
	app.Get("/admin/failed", h.ListFailed)
	app.Get("/admin/analytics/errors", h.ErrorAnalytics)
	app.Get("/admin/analytics/channels", h.ChannelAnalytics)
	app.Get("/health", h.Health)
	return app
}

func postJSON(t *testing.T, app *fiber.App, target string, body interface{}) (int, map[string]interface{}) {
	return sendJSON(t, app, "POST", target, body)
}

func sendJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, app *fiber.App, target string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func TestHealthEndpoint(t *testing.T) {
	h := &Handlers{logger: zap.NewNop()}
	app := newTestApp(h)

	status, body := getJSON(t, app, "/health")
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSendNotificationQueued(t *testing.T) {
	id := uuid.New()
	sub := &fakeSubmitter{receipt: &dispatch.Receipt{
		TransactionID: id,
		Channel:       notifications.ChannelEmail,
		Priority:      2,
		Queue:         queue.QueueRegular,
	}}
	h := &Handlers{logger: zap.NewNop(), dispatcher: sub}
	app := newTestApp(h)

	status, body := postJSON(t, app, "/notifications/send", map[string]interface{}{
		"userId":    "u1",
		"channel":   "EMAIL",
		"content":   "hi",
		"recipient": "a@b.c",
		"priority":  2,
	})
	if status != 202 {
		t.Fatalf("status = %d, want 202", status)
	}
	if body["success"] != true {
		t.Error("success flag not set")
	}
	if body["transactionId"] != id.String() {
		t.Errorf("transactionId = %v, want %s", body["transactionId"], id)
	}
	if body["channel"] != "EMAIL" || body["priority"] != float64(2) {
		t.Errorf("channel/priority = %v/%v", body["channel"], body["priority"])
	}
	if sub.lastReq == nil || sub.lastReq.UserID != "u1" {
		t.Error("request not forwarded to dispatcher")
	}
}

func TestSendNotificationValidationRejected(t *testing.T) {
	sub := &fakeSubmitter{err: fmt.Errorf("%w: userId is required", dispatch.ErrValidation)}
	h := &Handlers{logger: zap.NewNop(), dispatcher: sub}
	app := newTestApp(h)

	status, body := postJSON(t, app, "/notifications/send", map[string]interface{}{"content": "hi"})
	if status != 400 {
		t.Fatalf("status = %d, want 400", status)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "userId") {
		t.Errorf("message = %q, want the validation detail", msg)
	}
}

func TestSendNotificationUnreadyChannel(t *testing.T) {
	id := uuid.New()
	sub := &fakeSubmitter{
		receipt: &dispatch.Receipt{TransactionID: id, Channel: notifications.ChannelSMS, Priority: 2, Queue: queue.QueueDeadLetter},
		err:     dispatch.ErrProviderNotReady,
	}
	h := &Handlers{logger: zap.NewNop(), dispatcher: sub}
	app := newTestApp(h)

	status, body := postJSON(t, app, "/notifications/send", map[string]interface{}{
		"userId": "u1", "channel": "SMS", "content": "hi", "recipient": "+15550100",
	})
	if status != 422 {
		t.Fatalf("status = %d, want 422", status)
	}
	if body["success"] != false {
		t.Error("success should be false")
	}
	// the row exists; the client can still look the outcome up
	if body["transactionId"] != id.String() {
		t.Errorf("transactionId = %v, want %s", body["transactionId"], id)
	}
}

func TestSendNotificationInternalError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("enqueue blew up")}
	h := &Handlers{logger: zap.NewNop(), dispatcher: sub}
	app := newTestApp(h)

	status, body := postJSON(t, app, "/notifications/send", map[string]interface{}{
		"userId": "u1", "content": "hi", "recipient": "a@b.c",
	})
	if status != 500 {
		t.Fatalf("status = %d, want 500", status)
	}
	if msg, _ := body["message"].(string); strings.Contains(msg, "blew up") {
		t.Error("internal error detail leaked to the client")
	}
}

func TestSendNotificationRejectsBadJSON(t *testing.T) {
	h := &Handlers{logger: zap.NewNop(), dispatcher: &fakeSubmitter{}}
	app := newTestApp(h)

	req := httptest.NewRequest("POST", "/notifications/send", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSendBulkCountsAndResults(t *testing.T) {
	id := uuid.New()
	sub := &fakeSubmitter{bulk: &dispatch.BulkResult{
		Total:  3,
		Queued: 2,
		Failed: 1,
		Results: []dispatch.BulkItem{
			{Success: true, TransactionID: &id, UserID: "u1"},
			{Success: true, TransactionID: &id, UserID: "u2"},
			{Success: false, UserID: "u3", Error: "invalid notification request: content is required"},
		},
	}}
	h := &Handlers{logger: zap.NewNop(), dispatcher: sub}
	app := newTestApp(h)

	status, body := postJSON(t, app, "/notifications/send-bulk", map[string]interface{}{
		"notifications": []map[string]interface{}{
			{"userId": "u1", "content": "a", "recipient": "r1"},
			{"userId": "u2", "content": "b", "recipient": "r2"},
			{"userId": "u3", "recipient": "r3"},
		},
	})
	if status != 202 {
		t.Fatalf("status = %d, want 202", status)
	}
	if body["total"] != float64(3) || body["queued"] != float64(2) || body["failed"] != float64(1) {
		t.Errorf("counts = %v/%v/%v", body["total"], body["queued"], body["failed"])
	}
	results, _ := body["results"].([]interface{})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if sub.bulkSize != 3 {
		t.Errorf("dispatcher saw %d items, want 3", sub.bulkSize)
	}
}

func TestSendBulkRejectsEmptyAndOversized(t *testing.T) {
	h := &Handlers{logger: zap.NewNop(), dispatcher: &fakeSubmitter{}}
	app := newTestApp(h)

	status, _ := postJSON(t, app, "/notifications/send-bulk", map[string]interface{}{
		"notifications": []map[string]interface{}{},
	})
	if status != 400 {
		t.Errorf("empty list status = %d, want 400", status)
	}

	oversized := make([]map[string]interface{}, maxBulkSize+1)
	for i := range oversized {
		oversized[i] = map[string]interface{}{"userId": "u", "content": "c", "recipient": "r"}
	}
	status, body := postJSON(t, app, "/notifications/send-bulk", map[string]interface{}{
		"notifications": oversized,
	})
	if status != 400 {
		t.Errorf("oversized list status = %d, want 400", status)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "1000") {
		t.Errorf("message = %q, want the cap mentioned", msg)
	}
}

func TestGetPreferences(t *testing.T) {
	h := &Handlers{logger: zap.NewNop(), prefs: &fakePrefsStore{}}
	app := newTestApp(h)

	status, body := getJSON(t, app, "/users/u1/preferences")
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["userId"] != "u1" || body["emailEnabled"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestUpdatePreferencesRejectsBadPriority(t *testing.T) {
	prefs := &fakePrefsStore{}
	h := &Handlers{logger: zap.NewNop(), prefs: prefs}
	app := newTestApp(h)

	status, _ := sendJSON(t, app, "PUT", "/users/u1/preferences", map[string]interface{}{
		"emailPriority": 9,
	})
	if status != 400 {
		t.Fatalf("status = %d, want 400", status)
	}
	if prefs.updateSeen {
		t.Error("store reached despite invalid priority")
	}

	status, body := sendJSON(t, app, "PUT", "/users/u1/preferences", map[string]interface{}{
		"smsEnabled": true,
	})
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["userId"] != "u1" {
		t.Errorf("body = %v", body)
	}
}

func TestAdminTransactionsFilterParsing(t *testing.T) {
	store := &fakeAdminStore{}
	h := &Handlers{logger: zap.NewNop(), store: store}
	app := newTestApp(h)

	status, body := getJSON(t, app,
		"/admin/transactions?status=SENT&channel=EMAIL&failureReason=timeout&userId=u1&limit=10&offset=5&startDate=2026-01-01")
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}

	f := store.listFilter
	if f == nil {
		t.Fatal("store never queried")
	}
	if f.Status != notifications.StatusSent || f.Channel != notifications.ChannelEmail {
		t.Errorf("status/channel = %s/%s", f.Status, f.Channel)
	}
	if f.FailureReason != "timeout" || f.UserID != "u1" {
		t.Errorf("failureReason/userId = %q/%q", f.FailureReason, f.UserID)
	}
	if f.Limit != 10 || f.Offset != 5 {
		t.Errorf("limit/offset = %d/%d", f.Limit, f.Offset)
	}
	if f.StartDate == nil || f.StartDate.Year() != 2026 {
		t.Errorf("startDate = %v", f.StartDate)
	}
	if f.EndDate != nil {
		t.Errorf("endDate = %v, want nil", f.EndDate)
	}
}

func TestAdminTransactionsDefaults(t *testing.T) {
	store := &fakeAdminStore{}
	h := &Handlers{logger: zap.NewNop(), store: store}
	app := newTestApp(h)

	if status, _ := getJSON(t, app, "/admin/transactions"); status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if store.listFilter.Limit != 100 || store.listFilter.Offset != 0 {
		t.Errorf("defaults = %d/%d, want 100/0", store.listFilter.Limit, store.listFilter.Offset)
	}

	if status, _ := getJSON(t, app, "/admin/transactions?startDate=yesterday"); status != 400 {
		t.Errorf("bad date status = %d, want 400", status)
	}
}

func TestAdminTransactionDetail(t *testing.T) {
	id := uuid.New()
	txn := &notifications.Transaction{ID: id, UserID: "u1", Status: notifications.StatusDeadLetter}
	logs := []*notifications.ErrorLog{
		{TransactionID: id, ErrorType: "NETWORK_ERROR", Retryable: true},
		{TransactionID: id, ErrorType: "AUTHENTICATION_ERROR"},
	}
	store := &fakeAdminStore{txn: txn, logs: logs}
	h := &Handlers{logger: zap.NewNop(), store: store}
	app := newTestApp(h)

	status, body := getJSON(t, app, "/admin/transactions/"+id.String())
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	gotLogs, _ := body["errorLogs"].([]interface{})
	if len(gotLogs) != 2 {
		t.Errorf("errorLogs = %d, want 2", len(gotLogs))
	}

	if status, _ := getJSON(t, app, "/admin/transactions/"+uuid.NewString()); status != 404 {
		t.Errorf("unknown id status = %d, want 404", status)
	}
	if status, _ := getJSON(t, app, "/admin/transactions/not-a-uuid"); status != 400 {
		t.Errorf("bad id status = %d, want 400", status)
	}
}

func TestAdminFailedRetryableParam(t *testing.T) {
	store := &fakeAdminStore{}
	h := &Handlers{logger: zap.NewNop(), store: store}
	app := newTestApp(h)

	if status, _ := getJSON(t, app, "/admin/failed?retryable=banana"); status != 400 {
		t.Errorf("bad retryable status = %d, want 400", status)
	}

	if status, _ := getJSON(t, app, "/admin/failed?retryable=false&errorType=RATE_LIMIT"); status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	f := store.failedFilter
	if f == nil || f.Retryable == nil || *f.Retryable {
		t.Fatalf("retryable filter = %+v", f)
	}
	if f.ErrorType != "RATE_LIMIT" {
		t.Errorf("errorType = %q", f.ErrorType)
	}
}

func TestAdminDashboard(t *testing.T) {
	store := &fakeAdminStore{counts: map[notifications.Status]int64{
		notifications.StatusSent:   5,
		notifications.StatusQueued: 2,
	}}
	h := &Handlers{logger: zap.NewNop(), store: store, broker: &fakeStatsBroker{}}
	app := newTestApp(h)

	status, body := getJSON(t, app, "/admin/dashboard?userId=u1")
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	statistics, _ := body["statistics"].(map[string]interface{})
	if statistics["SENT"] != float64(5) {
		t.Errorf("statistics = %v", statistics)
	}
	queueStats, _ := body["queueStats"].(map[string]interface{})
	if len(queueStats) != 3 {
		t.Errorf("queueStats = %v, want all three queues", queueStats)
	}
	if body["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestAdminAnalytics(t *testing.T) {
	store := &fakeAdminStore{}
	h := &Handlers{logger: zap.NewNop(), store: store}
	app := newTestApp(h)

	status, body := getJSON(t, app, "/admin/analytics/errors")
	if status != 200 || body["totalErrors"] != float64(7) {
		t.Errorf("errors analytics = %d %v", status, body)
	}

	status, body = getJSON(t, app, "/admin/analytics/channels")
	if status != 200 {
		t.Fatalf("channels status = %d", status)
	}
	channels, _ := body["channels"].([]interface{})
	if len(channels) != 1 {
		t.Fatalf("channels = %v", body)
	}
	first, _ := channels[0].(map[string]interface{})
	if first["successRate"] != float64(90) {
		t.Errorf("successRate = %v", first["successRate"])
	}
}

func TestAdminKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	SetupMiddleware(app, zap.NewNop(), nil, nil, string(hash))
	app.Get("/admin/ping", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	req := httptest.NewRequest("GET", "/admin/ping", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != 401 {
		t.Errorf("missing key status = %d, want 401", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	resp, _ = app.Test(req)
	if resp.StatusCode != 401 {
		t.Errorf("wrong key status = %d, want 401", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("X-Admin-Key", "s3cret")
	resp, _ = app.Test(req)
	if resp.StatusCode != 200 {
		t.Errorf("valid key status = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := rate.NewLimiter(client, zap.NewNop(), 1, 1)

	app := fiber.New()
	SetupMiddleware(app, zap.NewNop(), nil, limiter, "")
	app.Post("/notifications/send", func(c *fiber.Ctx) error { return c.SendStatus(202) })

	req := httptest.NewRequest("POST", "/notifications/send", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != 202 {
		t.Fatalf("first request status = %d, want 202", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/notifications/send", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != 429 {
		t.Fatalf("second request status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}
