package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestEmptyConfigAccessors(t *testing.T) {
	c := EmptyConfig()
	if got := c.GetListenAddress(); got != ":5700" {
		t.Errorf("GetListenAddress() = %q", got)
	}
	if got := c.GetSendAddress(); got != "127.0.0.1:5700" {
		t.Errorf("GetSendAddress() = %q", got)
	}
	if got := c.GetMaxChunkSize(); got != 60000 {
		t.Errorf("GetMaxChunkSize() = %d", got)
	}
	if c.GetFrameIDs() {
		t.Error("GetFrameIDs() = true, want false")
	}
	if got := c.GetReassemblyTimeout(); got != time.Second {
		t.Errorf("GetReassemblyTimeout() = %v", got)
	}
	if got := c.GetDebounce(); got != render.DefaultDebounce {
		t.Errorf("GetDebounce() = %v", got)
	}
	if got := c.GetPollInterval(); got != 100*time.Millisecond {
		t.Errorf("GetPollInterval() = %v", got)
	}
	if got := c.GetRecordDir(); got != "" {
		t.Errorf("GetRecordDir() = %q", got)
	}
	if diff := cmp.Diff(render.DefaultSettings(), c.RenderSettings()); diff != "" {
		t.Errorf("RenderSettings() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("%s out of date (-accessors +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "listen_address": "0.0.0.0:6000",
  "reassembly_timeout": "250ms",
  "width": 320,
  "max_color": "#00ff00",
  "auto_window": true,
  "db_path": ""
}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.GetListenAddress(); got != "0.0.0.0:6000" {
		t.Errorf("GetListenAddress() = %q", got)
	}
	if got := cfg.GetReassemblyTimeout(); got != 250*time.Millisecond {
		t.Errorf("GetReassemblyTimeout() = %v", got)
	}
	if got := cfg.GetDBPath(); got != "" {
		t.Errorf("GetDBPath() = %q, want disabled", got)
	}
	if got := cfg.GetStatsInterval(); got != time.Minute {
		t.Errorf("GetStatsInterval() = %v, want default", got)
	}

	s := cfg.RenderSettings()
	want := render.DefaultSettings()
	want.Width = 320
	want.Ramp.MaxColor = l2fan.RGB{G: 255}
	want.AutoWindow = true
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("RenderSettings() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"extension", "c.yaml", `{}`, ".json extension"},
		{"syntax", "c.json", `{"width":`, "parse config JSON"},
		{"duration", "c.json", `{"debounce":"soon"}`, "invalid debounce"},
		{"negative duration", "c.json", `{"poll_interval":"-1s"}`, "non-negative"},
		{"colour", "c.json", `{"min_color":"#12"}`, "invalid min_color"},
		{"chunk", "c.json", `{"max_chunk_size":4}`, "max chunk size"},
		{"width", "c.json", `{"width":0}`, "width"},
		{"swath", "c.json", `{"swath_deg":400}`, "swath_deg"},
		{"range", "c.json", `{"max_range":0}`, "max_range"},
		{"live", "c.json", `{"live_capacity":0}`, "live_capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.ListenAddress != nil {
		t.Error("expected empty config")
	}
}
