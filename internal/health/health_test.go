package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) probeReply {
	t.Helper()
	var body probeReply
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func passing(_ context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestHealthServesWebhookContract(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	rec := get(t, mux, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if !body["ok"] || len(body) != 1 {
		t.Errorf(`body = %v, want {"ok":true}`, body)
	}
}

func TestHealthzAlwaysOK(t *testing.T) {
	mux := http.NewServeMux()
	New(Checker{Name: "voice", Check: failing("down")}).Register(mux)

	rec := get(t, mux, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even with failing readiness checks", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyzReportsPerCheck(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "voice", Check: passing},
				{Name: "brain", Check: passing},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"voice": "ok", "brain": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "voice", Check: failing("connection refused")},
				{Name: "brain", Check: passing},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{
				"voice": "fail: connection refused",
				"brain": "ok",
			},
		},
		{
			name: "all fail",
			checkers: []Checker{
				{Name: "voice", Check: failing("timeout")},
				{Name: "brain", Check: failing("unreachable")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{
				"voice": "fail: timeout",
				"brain": "fail: unreachable",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			New(tt.checkers...).Register(mux)

			rec := get(t, mux, "/readyz")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeReply(t, rec)
			if body.Status != tt.wantBody {
				t.Errorf("body status = %q, want %q", body.Status, tt.wantBody)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %q = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyzHonoursRequestCancellation(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 for a cancelled request", rec.Code)
	}
}
