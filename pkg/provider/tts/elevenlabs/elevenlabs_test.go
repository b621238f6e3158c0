package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockStreamServer starts a test WebSocket server that speaks the
// stream-input protocol: it validates the BOI handshake, consumes text until
// the flush message, then emits the given PCM as base64 chunks and a final
// marker.
func mockStreamServer(t *testing.T, wantAPIKey string, chunks [][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		ctx := r.Context()

		// BOI handshake.
		var boi boiMessage
		if _, msg, err := conn.Read(ctx); err != nil {
			t.Errorf("read BOI: %v", err)
			return
		} else if err := json.Unmarshal(msg, &boi); err != nil {
			t.Errorf("decode BOI: %v", err)
			return
		}
		if boi.XiAPIKey != wantAPIKey {
			t.Errorf("xi_api_key: got %q, want %q", boi.XiAPIKey, wantAPIKey)
		}
		if boi.Text == "" {
			t.Error("BOI text must be non-empty")
		}

		// Consume text fragments until the empty flush message.
		sawText := false
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				t.Errorf("read text: %v", err)
				return
			}
			var tm textMessage
			if err := json.Unmarshal(msg, &tm); err != nil {
				t.Errorf("decode text: %v", err)
				return
			}
			if tm.Text == "" {
				break
			}
			sawText = true
		}
		if !sawText {
			t.Error("expected at least one non-empty text fragment before flush")
		}

		// Emit audio chunks, marking the last as final.
		for i, chunk := range chunks {
			resp := audioResponse{
				Audio:   base64.StdEncoding.EncodeToString(chunk),
				IsFinal: i == len(chunks)-1,
			}
			data, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				t.Errorf("write audio: %v", err)
				return
			}
		}
	}))
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "voice-1"); err == nil {
		t.Fatal("expected error for empty API key")
	}
	if _, err := New("xi-key", ""); err == nil {
		t.Fatal("expected error for empty voice ID")
	}
	if _, err := New("xi-key", "voice-1", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Fatal("expected error for non-PCM output format")
	}
}

func TestName(t *testing.T) {
	p, err := New("xi-key", "voice-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Name(); got != "elevenlabs" {
		t.Errorf("Name(): got %q, want %q", got, "elevenlabs")
	}
}

func TestRateFromFormat(t *testing.T) {
	tests := []struct {
		format  string
		want    int
		wantErr bool
	}{
		{"pcm_16000", 16000, false},
		{"pcm_24000", 24000, false},
		{"pcm_44100", 44100, false},
		{"mp3_44100_128", 0, true},
		{"pcm_", 0, true},
		{"pcm_abc", 0, true},
	}
	for _, tt := range tests {
		got, err := rateFromFormat(tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got rate %d", tt.format, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.format, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.format, got, tt.want)
		}
	}
}

// TestSynthesize verifies the full protocol round trip: BOI, text, flush,
// chunk collection, final marker.
func TestSynthesize(t *testing.T) {
	chunks := [][]byte{
		{1, 0, 2, 0},
		{3, 0, 4, 0},
	}
	srv := mockStreamServer(t, "xi-key", chunks)
	defer srv.Close()

	p, err := New("xi-key", "voice-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip, err := p.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	want := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	if len(clip.PCM) != len(want) {
		t.Fatalf("PCM length: got %d, want %d", len(clip.PCM), len(want))
	}
	for i := range want {
		if clip.PCM[i] != want[i] {
			t.Fatalf("PCM[%d]: got %d, want %d", i, clip.PCM[i], want[i])
		}
	}
	if clip.SampleRate != 16000 || clip.Channels != 1 {
		t.Errorf("clip format = %dHz %dch, want 16000Hz 1ch", clip.SampleRate, clip.Channels)
	}
}

// TestSynthesize_EmptyText verifies that empty input is rejected without
// dialing.
func TestSynthesize_EmptyText(t *testing.T) {
	p, err := New("xi-key", "voice-1", WithBaseURL("http://127.0.0.1:19999"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty text, got nil")
	}
}

// TestSynthesize_ServerUnreachable verifies a dial failure is surfaced.
func TestSynthesize_ServerUnreachable(t *testing.T) {
	p, err := New("xi-key", "voice-1", WithBaseURL("http://127.0.0.1:19999"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := p.Synthesize(ctx, "Hi."); err == nil {
		t.Fatal("expected error for unreachable server, got nil")
	}
}

// TestSynthesize_NoAudio verifies that a stream that finishes without audio
// is reported as an error.
func TestSynthesize_NoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// Read the three client messages then send a bare final marker.
		ctx := r.Context()
		for range 3 {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
		data, _ := json.Marshal(audioResponse{IsFinal: true})
		_ = conn.Write(ctx, websocket.MessageText, data)
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	defer srv.Close()

	p, err := New("xi-key", "voice-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "Hi."); err == nil {
		t.Fatal("expected error for empty stream, got nil")
	}
}
