package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaanibank/vaani/internal/bank"
	"github.com/vaanibank/vaani/internal/config"
	"github.com/vaanibank/vaani/internal/health"
	"github.com/vaanibank/vaani/internal/nlu"
	nlumock "github.com/vaanibank/vaani/internal/nlu/mock"
	"github.com/vaanibank/vaani/internal/resilience"
	"github.com/vaanibank/vaani/internal/teller"
)

// newTestServer builds a Server over the demo dataset with scripted intents.
func newTestServer(t *testing.T, outcomes ...nlumock.Outcome) (*Server, *nlumock.Classifier) {
	t.Helper()
	classifier := &nlumock.Classifier{Outcomes: outcomes}
	tel := teller.New(bank.NewMemStore(), classifier)
	srv := New(config.ServerConfig{ListenAddr: ":0"}, tel)
	return srv, classifier
}

func postAssistant(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/assistant", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) assistantResponse {
	t.Helper()
	var resp assistantResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestAssistantBalance(t *testing.T) {
	srv, _ := newTestServer(t, nlumock.Outcome{
		Intent: nlu.Intent{Name: nlu.IntentCheckBalance, Confidence: 0.9},
	})

	rec := postAssistant(t, srv.Handler(), `{"user_id":1,"message":"what is my balance","password":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decodeResponse(t, rec)
	if resp.Reply != "Your current account balance is ₹10000" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.Page != nil {
		t.Errorf("page = %v, want null", *resp.Page)
	}
	if resp.Data.RequirePassword || resp.Data.Success {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestAssistantHistoryNavigates(t *testing.T) {
	srv, _ := newTestServer(t, nlumock.Outcome{
		Intent: nlu.Intent{Name: nlu.IntentHistory, Confidence: 0.9, Count: 3},
	})

	rec := postAssistant(t, srv.Handler(), `{"user_id":1,"message":"show my transactions"}`)
	resp := decodeResponse(t, rec)
	if resp.Page == nil || *resp.Page != "statements" {
		t.Errorf("page = %v, want statements", resp.Page)
	}
}

func TestAssistantTransferChallengeThenExecute(t *testing.T) {
	sendIntent := nlu.Intent{
		Name: nlu.IntentSendMoney, Confidence: 0.9, Amount: 500, Receiver: "ravi",
	}
	srv, _ := newTestServer(t,
		nlumock.Outcome{Intent: sendIntent},
		nlumock.Outcome{Intent: sendIntent},
	)

	// First round trip: challenge only, no money moved.
	rec := postAssistant(t, srv.Handler(), `{"user_id":1,"message":"send 500 to ravi","password":null}`)
	resp := decodeResponse(t, rec)
	if !resp.Data.RequirePassword {
		t.Fatalf("expected password challenge, got %+v", resp)
	}
	if resp.Data.Success {
		t.Error("challenge reply marked successful")
	}

	// Resubmission with the credential executes the transfer.
	rec = postAssistant(t, srv.Handler(), `{"user_id":1,"message":"send 500 to ravi","password":"password123"}`)
	resp = decodeResponse(t, rec)
	if !resp.Data.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Reply != "Transferred ₹500 to Ravi successfully." {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestAssistantBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"user_id":`},
		{"missing message", `{"user_id":1}`},
		{"missing user", `{"message":"balance"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAssistant(t, srv.Handler(), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var eb errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&eb); err != nil || eb.Detail == "" {
				t.Errorf("error body missing detail: %s", rec.Body)
			}
		})
	}
}

func TestAssistantUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t, nlumock.Outcome{
		Intent: nlu.Intent{Name: nlu.IntentCheckBalance, Confidence: 0.9},
	})

	rec := postAssistant(t, srv.Handler(), `{"user_id":99,"message":"balance"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var eb errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if eb.Detail != "User not found" {
		t.Errorf("detail = %q", eb.Detail)
	}
}

func TestAssistantClassifierOutage(t *testing.T) {
	srv, _ := newTestServer(t, nlumock.Outcome{
		Err: fmt.Errorf("nlu chain: %w", resilience.ErrAllFailed),
	})

	rec := postAssistant(t, srv.Handler(), `{"user_id":1,"message":"balance"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var eb errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if eb.Detail != "intent service error" {
		t.Errorf("detail = %q", eb.Detail)
	}
}

func TestHealthRoutes(t *testing.T) {
	classifier := &nlumock.Classifier{}
	tel := teller.New(bank.NewMemStore(), classifier)
	srv := New(config.ServerConfig{ListenAddr: ":0"}, tel,
		WithHealth(health.New(health.PingChecker("bank", bank.NewMemStore()))),
	)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}

func TestDialogRouteAbsentWithoutHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/ws/dialog", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Error("dialog route unexpectedly mounted")
	}
}
