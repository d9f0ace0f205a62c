package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "songduel.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.EventBusEnabled() {
		t.Fatal("event bus enabled without a URL")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, `
port: "9000"
log_level: debug
sweep_interval: 30s
allowed_origins: ["https://a.example"]
websocket:
  ping_interval: 20s
nats:
  url: nats://bus:4222
`)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example,https://c.example")
	t.Setenv("NATS_SUBJECT_PREFIX", "duel")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Port = "9100"
	want.LogLevel = "debug"
	want.SweepInterval = 30 * time.Second
	want.AllowedOrigins = []string{"https://b.example", "https://c.example"}
	want.WebSocket.PingInterval = 20 * time.Second
	want.NATS.URL = "nats://bus:4222"
	want.NATS.SubjectPrefix = "duel"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	level, err := cfg.Level()
	if err != nil || level != zerolog.DebugLevel {
		t.Fatalf("Level = %v, %v", level, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SWEEP_INTERVAL=5m\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv sets the variable for the process; make sure it is cleared
	t.Setenv("SWEEP_INTERVAL", "")
	os.Unsetenv("SWEEP_INTERVAL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("SweepInterval = %s, want 5m", cfg.SweepInterval)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "missing file", file: "-"},
		{name: "bad yaml", file: "port: [unterminated"},
		{name: "bad duration", env: map[string]string{"SWEEP_INTERVAL": "soon"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "ping exceeds read timeout", env: map[string]string{"WS_PING_INTERVAL": "2m"}},
		{name: "zero sweep", env: map[string]string{"SWEEP_INTERVAL": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			switch tt.file {
			case "":
			case "-":
				path = filepath.Join(t.TempDir(), "absent.yaml")
			default:
				path = writeFile(t, tt.file)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
