package alert_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/novakeep/herald/internal/alert"
)

type presenceStub bool

func (p presenceStub) Present() bool { return bool(p) }

func newTestServer(t *testing.T, inbox *alert.Inbox, present bool) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	alert.NewServer(inbox, "secret-token", presenceStub(present), nil, nil).Register(mux)
	return mux
}

func postAlert(mux *http.ServeMux, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/alert", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAlertQueuedWithPresence(t *testing.T) {
	t.Parallel()

	inbox := alert.NewInbox(50, time.Hour)
	mux := newTestServer(t, inbox, true)

	rec := postAlert(mux, "secret-token", `{"message":"build failed","priority":"urgent","source":"ci"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var resp struct {
		OK          bool `json:"ok"`
		Queued      bool `json:"queued"`
		UserInVoice bool `json:"userInVoice"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || !resp.Queued || !resp.UserInVoice {
		t.Errorf("response = %+v, want all true", resp)
	}

	got := inbox.DrainBriefing()
	if len(got) != 1 || got[0].Priority != alert.PriorityUrgent || got[0].Source != "ci" {
		t.Errorf("queued alert = %+v", got)
	}
}

func TestAlertReportsUserNotInVoice(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t, alert.NewInbox(50, time.Hour), false)
	rec := postAlert(mux, "secret-token", `{"message":"hi"}`)

	var resp struct {
		UserInVoice bool `json:"userInVoice"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserInVoice {
		t.Error("userInVoice = true, want false")
	}
}

func TestAlertAuthFailures(t *testing.T) {
	t.Parallel()

	inbox := alert.NewInbox(50, time.Hour)
	mux := newTestServer(t, inbox, false)

	for _, token := range []string{"", "wrong-token"} {
		rec := postAlert(mux, token, `{"message":"hi"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rec.Code)
		}
	}
	if n := inbox.Len(); n != 0 {
		t.Errorf("inbox = %d after rejected requests, want 0", n)
	}
}

func TestAlertBadRequests(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t, alert.NewInbox(50, time.Hour), false)

	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"priority":"urgent"}`},
		{"blank message", `{"message":"   "}`},
		{"invalid JSON", `{not json`},
		{"unknown priority", `{"message":"hi","priority":"catastrophic"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAlert(mux, "secret-token", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAlertDefaultPriorityIsNormal(t *testing.T) {
	t.Parallel()

	inbox := alert.NewInbox(50, time.Hour)
	mux := newTestServer(t, inbox, false)

	postAlert(mux, "secret-token", `{"message":"no priority set"}`)
	got := inbox.DrainBriefing()
	if len(got) != 1 || got[0].Priority != alert.PriorityNormal {
		t.Errorf("alert = %+v, want normal priority", got)
	}
}
