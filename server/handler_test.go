package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bank-accounts/app"
	"bank-accounts/server"
	"bank-accounts/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	registry, err := app.NewRegistry(store.NewInMemoryEventStore(), store.NewInMemorySnapshotStore())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	t.Cleanup(registry.Stop)
	return server.New(registry).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type accountResponse struct {
	ID       string          `json:"id"`
	Owner    string          `json:"owner"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Version  int             `json:"version"`
}

func openAccount(t *testing.T, router http.Handler, owner, currency, balance string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/accounts", map[string]any{
		"owner": owner, "currency": currency, "initialBalance": balance,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 opening account, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected an account id in the response")
	}
	if location := rec.Header().Get("Location"); location != "/accounts/"+resp.ID {
		t.Errorf("unexpected Location header: %q", location)
	}
	return resp.ID
}

func TestOpenAccountValidation(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"MissingOwner", map[string]any{"currency": "USD", "initialBalance": "10"}},
		{"MissingCurrency", map[string]any{"owner": "alice", "initialBalance": "10"}},
		{"NegativeInitialBalance", map[string]any{"owner": "alice", "currency": "USD", "initialBalance": "-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/accounts", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAccountScenario(t *testing.T) {
	router := newTestRouter(t)
	id := openAccount(t, router, "alice", "USD", "100.0")

	rec := doJSON(t, router, http.MethodPost, "/accounts/"+id+"/balance", map[string]any{"delta": "-30.0"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 changing balance, got %d: %s", rec.Code, rec.Body.String())
	}
	var account accountResponse
	if err := json.NewDecoder(rec.Body).Decode(&account); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if !account.Balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected balance 70, got %s", account.Balance)
	}

	rec = doJSON(t, router, http.MethodPost, "/accounts/"+id+"/balance", map[string]any{"delta": "-1000.0"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for insufficient funds, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/accounts/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 getting account, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&account); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if !account.Balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("rejected change must leave balance 70, got %s", account.Balance)
	}
	if account.Owner != "alice" || account.Currency != "USD" {
		t.Errorf("account metadata diverged: %+v", account)
	}
}

func TestUnknownAccount(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/accounts/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from get, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/accounts/missing/balance", map[string]any{"delta": "-1"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from balance change, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/accounts/missing/history", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from history, got %d", rec.Code)
	}
}

func TestChangeBalanceValidation(t *testing.T) {
	router := newTestRouter(t)
	id := openAccount(t, router, "alice", "USD", "10")

	rec := doJSON(t, router, http.MethodPost, "/accounts/"+id+"/balance", map[string]any{"delta": "0"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for zero delta, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	router := newTestRouter(t)
	id := openAccount(t, router, "alice", "USD", "100")

	for _, delta := range []string{"-10", "20"} {
		rec := doJSON(t, router, http.MethodPost, "/accounts/"+id+"/balance", map[string]any{"delta": delta})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 changing balance, got %d", rec.Code)
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/accounts/"+id+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from history, got %d", rec.Code)
	}
	var history []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}

	rec = doJSON(t, router, http.MethodGet, "/accounts/"+id+"/history?skip=1&limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from paginated history, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode paginated history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected 1 event in page, got %d", len(history))
	}
}
