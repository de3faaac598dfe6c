package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

// clearTelemetryEnv neutralizes ambient telemetry variables so tests only
// see what they set themselves.
func clearTelemetryEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"TELEMETRY", "TELEMETRY_OPTOUT", "TELEMETRY_ENDPOINT", "TELEMETRY_STATE_FILE", "TELEMETRY_STATE_DIR"} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func TestSendPayload(t *testing.T) {
	clearTelemetryEnv(t)

	var got payload
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
		received <- struct{}{}
	}))
	defer server.Close()

	r := New(Config{
		Endpoint:  server.URL,
		Project:   "my-cool-app",
		StateFile: filepath.Join(t.TempDir(), ".telemetry_id"),
	})

	if err := r.Send(context.Background()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("collector never received the ping")
	}

	if !regexp.MustCompile(`^[a-f0-9]{64}$`).MatchString(got.ID) {
		t.Errorf("id is not a sha-256 hex digest: %q", got.ID)
	}
	if got.Date != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("unexpected date %q", got.Date)
	}
	if got.ProjectName != "my-cool-app" || got.Project != "my-cool-app" {
		t.Errorf("project not carried in both fields: %+v", got)
	}
	if got.Count != 1 {
		t.Errorf("expected count 1, got %d", got.Count)
	}
}

func TestSendSkipsWithoutProject(t *testing.T) {
	clearTelemetryEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent without a project name")
	}))
	defer server.Close()

	r := New(Config{Endpoint: server.URL, StateFile: filepath.Join(t.TempDir(), "id")})
	if err := r.Send(context.Background()); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestOptOut(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		wants bool
	}{
		{"no env", nil, false},
		{"project opt-out", map[string]string{"MYAPP_TELEMETRY_OPTOUT": "1"}, true},
		{"project opt-out false", map[string]string{"MYAPP_TELEMETRY_OPTOUT": "false"}, false},
		{"generic opt-out", map[string]string{"TELEMETRY_OPTOUT": "yes"}, true},
		{"telemetry disabled", map[string]string{"TELEMETRY": "off"}, true},
		{"telemetry enabled", map[string]string{"TELEMETRY": "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTelemetryEnv(t)
			_ = os.Unsetenv("MYAPP_TELEMETRY_OPTOUT")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			r := New(Config{Project: "x", OptOutEnvVar: "MYAPP_TELEMETRY_OPTOUT"})
			if got := r.OptedOut(); got != tt.wants {
				t.Errorf("OptedOut() = %v, want %v", got, tt.wants)
			}
		})
	}
}

func TestOptOutSuppressesSend(t *testing.T) {
	clearTelemetryEnv(t)
	t.Setenv("TELEMETRY_OPTOUT", "true")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent when opted out")
	}))
	defer server.Close()

	r := New(Config{Endpoint: server.URL, Project: "x", StateFile: filepath.Join(t.TempDir(), "id")})
	if err := r.Send(context.Background()); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestInstanceIDPersists(t *testing.T) {
	clearTelemetryEnv(t)

	path := filepath.Join(t.TempDir(), "state", ".telemetry_id")
	r := New(Config{StateFile: path})

	first := r.InstanceID()
	if first == "" {
		t.Fatal("expected a non-empty instance id")
	}
	if second := r.InstanceID(); second != first {
		t.Errorf("instance id changed between calls: %q vs %q", first, second)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	if string(raw) != first {
		t.Errorf("state file holds %q, want %q", raw, first)
	}

	// a fresh reporter on the same state file sees the same id
	if again := New(Config{StateFile: path}).InstanceID(); again != first {
		t.Errorf("id not persistent across reporters: %q vs %q", again, first)
	}
}

func TestInstanceIDEphemeralFallback(t *testing.T) {
	clearTelemetryEnv(t)

	// parent "directory" is a regular file, so the state file can never
	// be created
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(Config{StateFile: filepath.Join(blocker, "sub", ".telemetry_id")})
	if id := r.InstanceID(); id == "" {
		t.Error("expected an ephemeral id despite unwritable state file")
	}
}

func TestSendIgnoresCollectorFailure(t *testing.T) {
	clearTelemetryEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := New(Config{Endpoint: server.URL, Project: "x", StateFile: filepath.Join(t.TempDir(), "id")})
	if err := r.Send(context.Background()); err != nil {
		t.Fatalf("collector errors must be swallowed, got %v", err)
	}
}

func TestEndpointEnvOverride(t *testing.T) {
	clearTelemetryEnv(t)

	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
		received <- struct{}{}
	}))
	defer server.Close()

	t.Setenv("TELEMETRY_ENDPOINT", server.URL)
	r := New(Config{Endpoint: "http://127.0.0.1:1", Project: "x", StateFile: filepath.Join(t.TempDir(), "id")})
	if err := r.Send(context.Background()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("env endpoint override not honored")
	}
}
