package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/handler"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/cache"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/gemini"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/twilio"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

const (
	userID = "6f1c2a8e-0000-4000-8000-000000000001"
	phone  = "5511999999999"
)

// --- Fake Supabase (PostgREST) ---

type fakeSupabase struct {
	mu   sync.Mutex
	rows []map[string]any
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/rest/v1/users" && r.Method == http.MethodGet:
		if q.Get("whatsapp_number") == "eq."+phone {
			io.WriteString(w, `[{"id":"`+userID+`","name":"Dona Maria","whatsapp_number":"`+phone+`"}]`)
			return
		}
		io.WriteString(w, `[]`)

	case r.URL.Path == "/rest/v1/transactions" && r.Method == http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		row["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
		f.mu.Lock()
		f.rows = append(f.rows, row)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]any{row})

	case r.URL.Path == "/rest/v1/transactions" && r.Method == http.MethodGet:
		owner := strings.TrimPrefix(q.Get("user_id"), "eq.")
		f.mu.Lock()
		out := []map[string]any{}
		for _, row := range f.rows {
			if row["user_id"] == owner {
				out = append(out, row)
			}
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(out)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSupabase) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// --- Fake Gemini ---

// fakeModel answers generateContent by looking at the user text.
func fakeModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	text := ""
	if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
		text = req.Contents[0].Parts[0].Text
	}

	answer := `{"descricao":"","valor":null,"tipo":"income","categoria":"Diversos"}`
	switch {
	case strings.Contains(text, "35 reais"):
		answer = `{"descricao":"Venda de bolo","valor":35,"tipo":"income","categoria":"Vendas"}`
	case strings.Contains(text, "uber"):
		answer = `{"descricao":"Uber","valor":20,"tipo":"expense","categoria":"Transporte"}`
	}

	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": answer}}},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 50, "candidatesTokenCount": 10, "totalTokenCount": 60},
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

// --- Wiring ---

type app struct {
	server *httptest.Server
	db     *fakeSupabase
	auth   *service.AuthService
}

func newApp(t *testing.T) *app {
	t.Helper()

	db := &fakeSupabase{}
	dbServer := httptest.NewServer(db)
	t.Cleanup(dbServer.Close)

	modelServer := httptest.NewServer(http.HandlerFunc(fakeModel))
	t.Cleanup(modelServer.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}

	store := supabase.NewClient(&http.Client{Timeout: 5 * time.Second}, dbServer.URL, "anon", "service", resilience.NewCircuitBreaker("supabase-it"), cfg, logger)

	extractor, err := gemini.NewExtractor(context.Background(), gemini.Options{
		APIKey:     "test-key",
		Model:      "gemini-test",
		BaseURL:    modelServer.URL + "/",
		HTTPClient: modelServer.Client(),
	}, resilience.NewCircuitBreaker("gemini-it"), resilience.NewBulkhead(cfg.MaxConcurrency), logger)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	c := cache.New[any](time.Minute)
	t.Cleanup(c.Close)

	reports := service.NewReportService(store, c, metrics, logger)
	committer := service.NewCommitter(store, reports, logger)
	ingest := service.NewIngestService(
		service.NewSenderResolver(store, logger),
		extractor,
		committer,
		service.NewResponder(service.DeliveryInline, twilio.TwiML{}, nil, logger),
		5*time.Second,
		metrics,
		logger,
	)
	auth := service.NewAuthService("integration-secret", time.Hour, logger)

	router := handler.NewRouter(handler.Services{
		Ingest:       ingest,
		Transactions: service.NewTransactionService(store, committer, reports, logger),
		Reports:      reports,
		Auth:         auth,
		Store:        store,
	}, handler.Options{}, metrics, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &app{server: srv, db: db, auth: auth}
}

func (a *app) postForm(t *testing.T, from, body string) (*http.Response, string) {
	t.Helper()
	form := url.Values{"From": {from}, "Body": {body}, "To": {"whatsapp:+14155238886"}, "MessageSid": {"SM-it"}}
	resp, err := http.PostForm(a.server.URL+"/v1/webhook/whatsapp", form)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (a *app) authed(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	tok, err := a.auth.IssueAccessToken(context.Background(), &domain.TokenRequest{UserID: userID})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req, _ := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

// --- Flows ---

// TestIntegration_WebhookToDashboard sends a WhatsApp message and reads it back
// through the authenticated dashboard endpoints.
func TestIntegration_WebhookToDashboard(t *testing.T) {
	a := newApp(t)

	resp, body := a.postForm(t, "whatsapp:+"+phone, "vendi um bolo por 35 reais")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "<Message>") || !strings.Contains(body, "35.00") {
		t.Errorf("unexpected TwiML: %s", body)
	}
	if a.db.count() != 1 {
		t.Fatalf("expected 1 stored row, got %d", a.db.count())
	}

	resp, raw := a.authed(t, http.MethodGet, "/v1/transactions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var list struct {
		Data  []domain.TransactionView `json:"data"`
		Total int                      `json:"total"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 transaction, got %d", list.Total)
	}
	got := list.Data[0]
	if got.Kind != domain.KindIncome || got.Amount.StringFixed(2) != "35.00" || got.Origin != domain.OriginMessaging {
		t.Errorf("unexpected transaction: %+v", got)
	}
	if got.Date != time.Now().Format(domain.DateLayout) {
		t.Errorf("expected today's date, got %s", got.Date)
	}

	resp, raw = a.authed(t, http.MethodGet, "/v1/reports/summary", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sum domain.Summary
	json.Unmarshal(raw, &sum)
	if sum.TotalIncome.StringFixed(2) != "35.00" || sum.Feedback == nil || sum.Feedback.Type != domain.FeedbackSuccess {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestIntegration_ChatExpenseInvalidatesSummary(t *testing.T) {
	a := newApp(t)

	_, raw := a.authed(t, http.MethodGet, "/v1/reports/summary", "")
	var before domain.Summary
	json.Unmarshal(raw, &before)
	if before.Count != 0 {
		t.Fatalf("expected empty summary, got %+v", before)
	}

	resp, raw := a.authed(t, http.MethodPost, "/v1/chat", `{"text":"paguei 20 de uber"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var reply domain.ChatReply
	json.Unmarshal(raw, &reply)
	if !reply.Success || !strings.Contains(reply.ReplyText, "saída") {
		t.Errorf("unexpected reply: %+v", reply)
	}

	_, raw = a.authed(t, http.MethodGet, "/v1/reports/summary", "")
	var after domain.Summary
	json.Unmarshal(raw, &after)
	if after.Count != 1 || after.TotalExpense.StringFixed(2) != "20.00" {
		t.Errorf("expected the cached summary to be refreshed, got %+v", after)
	}
}

func TestIntegration_NotUnderstoodWritesNothing(t *testing.T) {
	a := newApp(t)

	resp, body := a.postForm(t, "whatsapp:+"+phone, "vendi um bolo")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Não consegui identificar") {
		t.Errorf("expected not-understood reply, got %s", body)
	}
	if a.db.count() != 0 {
		t.Errorf("expected no rows, got %d", a.db.count())
	}
}

func TestIntegration_UnregisteredSender(t *testing.T) {
	a := newApp(t)

	resp, body := a.postForm(t, "whatsapp:+5521000000000", "vendi um bolo por 35 reais")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if strings.Contains(body, "<Message") {
		t.Errorf("expected empty TwiML, got %s", body)
	}
	if a.db.count() != 0 {
		t.Errorf("expected no rows, got %d", a.db.count())
	}
}

func TestIntegration_Readyz(t *testing.T) {
	a := newApp(t)

	resp, err := http.Get(a.server.URL + "/readyz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
