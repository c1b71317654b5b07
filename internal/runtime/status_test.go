package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/state"
)

func TestHandleGetStatusReturnsJSON(t *testing.T) {
	conf := testConfig(t)
	conf.StatusAllowedOrigins = []string{"*"}
	rt, _ := newTestRuntime(t, conf, Dependencies{Store: state.NewMemoryStore()})
	if err := rt.Handle(event.TypeInteractionCreate, "ping", func(context.Context, *event.Envelope) error { return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := rt.SetMaintenance(context.Background(), true); err != nil {
		t.Fatalf("set maintenance: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	rt.handleGetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content type, got %s", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be '*', got %s", got)
	}

	var payload Status
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if !payload.Maintenance {
		t.Fatal("expected maintenance to be reported")
	}
	if got := payload.Handlers[event.TypeInteractionCreate]; len(got) != 1 || got[0] != "ping" {
		t.Fatalf("unexpected handlers: %+v", payload.Handlers)
	}
	if len(payload.Guards) != 2 {
		t.Fatalf("unexpected guards: %v", payload.Guards)
	}
}

func TestHandleGetStatusPreflight(t *testing.T) {
	conf := testConfig(t)
	conf.StatusAllowedOrigins = []string{"https://ops.example"}
	rt, _ := newTestRuntime(t, conf, Dependencies{Store: state.NewMemoryStore()})

	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "https://OPS.example")
	rec := httptest.NewRecorder()
	rt.handleGetStatus(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://OPS.example" {
		t.Fatalf("unexpected allowed origin %q", got)
	}
}

func TestHandleGetStatusWithoutStore(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(t), Dependencies{})

	rec := httptest.NewRecorder()
	rt.handleGetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header, got %q", got)
	}
}
