package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fabrica/fabrica/internal/recordgen"
)

const validSchemas = `
customers:
  id: id
  name: text
orders:
  __foreign_keys__:
    customer_id: [customers, id]
  id: id
  customer_id: foreign_key
`

const invalidSchemas = `
orders:
  __foreign_keys__:
    customer_id: [customer, id]
  id: id
  customer_id: foreign_key
`

func testServer(t *testing.T) (*Server, *Runner) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	runner := NewRunner(recordgen.NewLocal(1), nil, logger)
	return New(runner, logger, 0), runner
}

func doJSON(t *testing.T, h http.Handler, method, path string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHandleHealth(t *testing.T) {
	s, _ := testServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
}

func TestHandleValidate_Valid(t *testing.T) {
	s, _ := testServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/validate", validSchemas)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	if body["valid"] != true {
		t.Errorf("expected valid=true: %v", body)
	}
}

func TestHandleValidate_Invalid(t *testing.T) {
	s, _ := testServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/validate", invalidSchemas)
	if rec.Code != http.StatusOK {
		t.Fatalf("validation failures still respond 200, got %d", rec.Code)
	}
	if body["valid"] != false {
		t.Errorf("expected valid=false: %v", body)
	}
	summary, _ := body["summary"].(string)
	if !strings.Contains(summary, "validation failed") {
		t.Errorf("summary = %q", summary)
	}
}

func TestHandleValidate_MalformedYAML(t *testing.T) {
	s, _ := testServer(t)
	rec, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/validate", "][nonsense")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleGenerate_FullRun(t *testing.T) {
	s, runner := testServer(t)

	payload, _ := json.Marshal(generateRequest{
		Schemas: validSchemas,
		Rows:    map[string]int{"customers": 3, "orders": 5},
		Seed:    42,
	})
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/generate", string(payload))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	runID, _ := body["run_id"].(string)
	if runID == "" {
		t.Fatalf("missing run_id: %v", body)
	}

	waitForState(t, runner, StateComplete)

	rec, body = doJSON(t, s.Handler(), http.MethodGet, "/api/run", "")
	if rec.Code != http.StatusOK || body["state"] != StateComplete {
		t.Fatalf("run status = %d %v", rec.Code, body)
	}
	if body["total_rows"] != float64(8) {
		t.Errorf("total_rows = %v", body["total_rows"])
	}

	rec, body = doJSON(t, s.Handler(), http.MethodGet, "/api/dataset/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dataset status = %d: %v", rec.Code, body)
	}
	rows, _ := body["rows"].([]any)
	if len(rows) != 5 {
		t.Errorf("expected 5 order rows, got %d", len(rows))
	}
}

func TestHandleGenerate_InvalidSchemas(t *testing.T) {
	s, _ := testServer(t)
	payload, _ := json.Marshal(generateRequest{Schemas: invalidSchemas})
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/generate", string(payload))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	if _, ok := body["report"]; !ok {
		t.Errorf("expected embedded report: %v", body)
	}
}

func TestHandleDataset_NoRun(t *testing.T) {
	s, _ := testServer(t)
	rec, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/dataset/customers", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleAbort_NoRun(t *testing.T) {
	s, _ := testServer(t)
	rec, _ := doJSON(t, s.Handler(), http.MethodPost, "/api/run/abort", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	runner := NewRunner(recordgen.NewLocal(1), nil, logger)
	s := New(runner, logger, 0, WithDevMode(true))

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func waitForState(t *testing.T, r *Runner, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := r.Status()
		if st.State == want {
			return
		}
		if st.State == StateFailed {
			t.Fatalf("run failed: %s", st.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run never reached %s (at %s)", want, r.Status().State)
}
