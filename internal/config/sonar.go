// Package config loads the JSON configuration shared by the sonar tools.
// Every field is optional; Get* accessors fall back to the built-in
// defaults, and command-line flags override both.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/sonar.defaults.json"

// SonarConfig is the root configuration.
type SonarConfig struct {
	// Transport
	ListenAddress     *string `json:"listen_address,omitempty"`
	SendAddress       *string `json:"send_address,omitempty"`
	MaxChunkSize      *int    `json:"max_chunk_size,omitempty"`
	FrameIDs          *bool   `json:"frame_ids,omitempty"`
	ReassemblyTimeout *string `json:"reassembly_timeout,omitempty"` // duration string like "1s"
	RcvBuf            *int    `json:"rcvbuf,omitempty"`
	StatsInterval     *string `json:"stats_interval,omitempty"`
	LiveCapacity      *int    `json:"live_capacity,omitempty"`

	// Fan and render
	SwathDeg     *float64 `json:"swath_deg,omitempty"`
	MaxRange     *float64 `json:"max_range,omitempty"`
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	MinIntensity *float64 `json:"min_intensity,omitempty"`
	MaxIntensity *float64 `json:"max_intensity,omitempty"`
	MinColor     *string  `json:"min_color,omitempty"` // "#rrggbb"
	MaxColor     *string  `json:"max_color,omitempty"`
	Foreground   *string  `json:"foreground,omitempty"`
	Background   *string  `json:"background,omitempty"`
	AutoWindow   *bool    `json:"auto_window,omitempty"`
	Debounce     *string  `json:"debounce,omitempty"`

	// Playback
	PollInterval *string `json:"poll_interval,omitempty"`
	StartPaused  *bool   `json:"start_paused,omitempty"`

	// Services and storage
	GRPCAddress *string `json:"grpc_address,omitempty"`
	HTTPAddress *string `json:"http_address,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
	RecordDir   *string `json:"record_dir,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a SonarConfig with every field unset.
func EmptyConfig() *SonarConfig {
	return &SonarConfig{}
}

// DefaultConfig returns a SonarConfig with every field set to the value
// its accessor falls back to.
func DefaultConfig() *SonarConfig {
	c := EmptyConfig()
	rs := render.DefaultSettings()
	return &SonarConfig{
		ListenAddress:     ptrString(c.GetListenAddress()),
		SendAddress:       ptrString(c.GetSendAddress()),
		MaxChunkSize:      ptrInt(c.GetMaxChunkSize()),
		FrameIDs:          ptrBool(c.GetFrameIDs()),
		ReassemblyTimeout: ptrString(c.GetReassemblyTimeout().String()),
		RcvBuf:            ptrInt(c.GetRcvBuf()),
		StatsInterval:     ptrString(c.GetStatsInterval().String()),
		LiveCapacity:      ptrInt(c.GetLiveCapacity()),
		SwathDeg:          ptrFloat64(rs.SwathDeg),
		MaxRange:          ptrFloat64(rs.MaxRange),
		Width:             ptrInt(rs.Width),
		Height:            ptrInt(rs.Height),
		MinIntensity:      ptrFloat64(rs.Ramp.MinIntensity),
		MaxIntensity:      ptrFloat64(rs.Ramp.MaxIntensity),
		MinColor:          ptrString(rs.Ramp.MinColor.String()),
		MaxColor:          ptrString(rs.Ramp.MaxColor.String()),
		Foreground:        ptrString(rs.Overlay.Foreground.String()),
		Background:        ptrString(rs.Overlay.Background.String()),
		AutoWindow:        ptrBool(rs.AutoWindow),
		Debounce:          ptrString(c.GetDebounce().String()),
		PollInterval:      ptrString(c.GetPollInterval().String()),
		StartPaused:       ptrBool(c.GetStartPaused()),
		GRPCAddress:       ptrString(c.GetGRPCAddress()),
		HTTPAddress:       ptrString(c.GetHTTPAddress()),
		DBPath:            ptrString(c.GetDBPath()),
		RecordDir:         ptrString(c.GetRecordDir()),
	}
}

// LoadConfig loads a SonarConfig from a .json file of at most 1MB.
// Omitted fields keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*SonarConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns an empty config when path is "".
func LoadOrDefault(path string) (*SonarConfig, error) {
	if path == "" {
		return EmptyConfig(), nil
	}
	return LoadConfig(path)
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories so tests can run from any package. It panics on failure.
func MustLoadDefaultConfig() *SonarConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *SonarConfig) Validate() error {
	for name, d := range map[string]*string{
		"reassembly_timeout": c.ReassemblyTimeout,
		"stats_interval":     c.StatsInterval,
		"debounce":           c.Debounce,
		"poll_interval":      c.PollInterval,
	} {
		if d == nil || *d == "" {
			continue
		}
		v, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *d)
		}
	}

	for name, s := range map[string]*string{
		"min_color":  c.MinColor,
		"max_color":  c.MaxColor,
		"foreground": c.Foreground,
		"background": c.Background,
	} {
		if s == nil {
			continue
		}
		if _, err := l2fan.ParseRGB(*s); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.MaxChunkSize != nil {
		if err := l1datagrams.CheckMaxChunkSize(*c.MaxChunkSize); err != nil {
			return err
		}
	}
	if c.Width != nil && (*c.Width < 1 || *c.Width > 8192) {
		return fmt.Errorf("width must be between 1 and 8192, got %d", *c.Width)
	}
	if c.Height != nil && (*c.Height < 1 || *c.Height > 8192) {
		return fmt.Errorf("height must be between 1 and 8192, got %d", *c.Height)
	}
	if c.SwathDeg != nil && (*c.SwathDeg <= 0 || *c.SwathDeg > 360) {
		return fmt.Errorf("swath_deg must be in (0, 360], got %f", *c.SwathDeg)
	}
	if c.MaxRange != nil && *c.MaxRange <= 0 {
		return fmt.Errorf("max_range must be positive, got %f", *c.MaxRange)
	}
	if c.LiveCapacity != nil && *c.LiveCapacity < 1 {
		return fmt.Errorf("live_capacity must be positive, got %d", *c.LiveCapacity)
	}
	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcvbuf must be non-negative, got %d", *c.RcvBuf)
	}
	return nil
}

func duration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetListenAddress returns the receiver bind address or the default.
func (c *SonarConfig) GetListenAddress() string {
	if c.ListenAddress == nil {
		return ":5700"
	}
	return *c.ListenAddress
}

// GetSendAddress returns the sender destination or the default.
func (c *SonarConfig) GetSendAddress() string {
	if c.SendAddress == nil {
		return "127.0.0.1:5700"
	}
	return *c.SendAddress
}

func (c *SonarConfig) GetMaxChunkSize() int {
	if c.MaxChunkSize == nil {
		return l1datagrams.DefaultMaxChunkSize
	}
	return *c.MaxChunkSize
}

func (c *SonarConfig) GetFrameIDs() bool {
	if c.FrameIDs == nil {
		return false
	}
	return *c.FrameIDs
}

// GetReassemblyTimeout returns the partial frame lifetime (default 1s).
func (c *SonarConfig) GetReassemblyTimeout() time.Duration {
	return duration(c.ReassemblyTimeout, time.Second)
}

// GetRcvBuf returns the UDP receive buffer size (default 4MB).
func (c *SonarConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return 4 << 20
	}
	return *c.RcvBuf
}

func (c *SonarConfig) GetStatsInterval() time.Duration {
	return duration(c.StatsInterval, time.Minute)
}

func (c *SonarConfig) GetLiveCapacity() int {
	if c.LiveCapacity == nil {
		return 600
	}
	return *c.LiveCapacity
}

func (c *SonarConfig) GetDebounce() time.Duration {
	return duration(c.Debounce, render.DefaultDebounce)
}

func (c *SonarConfig) GetPollInterval() time.Duration {
	return duration(c.PollInterval, 100*time.Millisecond)
}

func (c *SonarConfig) GetStartPaused() bool {
	if c.StartPaused == nil {
		return false
	}
	return *c.StartPaused
}

func (c *SonarConfig) GetGRPCAddress() string {
	if c.GRPCAddress == nil {
		return "localhost:50051"
	}
	return *c.GRPCAddress
}

func (c *SonarConfig) GetHTTPAddress() string {
	if c.HTTPAddress == nil {
		return ":8080"
	}
	return *c.HTTPAddress
}

// GetDBPath returns the SQLite path; "" disables the database.
func (c *SonarConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "sonar.db"
	}
	return *c.DBPath
}

// GetRecordDir returns the recordings parent directory; "" disables
// recording.
func (c *SonarConfig) GetRecordDir() string {
	if c.RecordDir == nil {
		return ""
	}
	return *c.RecordDir
}

// RenderSettings overlays the set render fields on the defaults. Colours
// were checked by Validate; an unparsable one keeps its default.
func (c *SonarConfig) RenderSettings() render.Settings {
	s := render.DefaultSettings()
	if c.Width != nil {
		s.Width = *c.Width
	}
	if c.Height != nil {
		s.Height = *c.Height
	}
	if c.SwathDeg != nil {
		s.SwathDeg = *c.SwathDeg
	}
	if c.MaxRange != nil {
		s.MaxRange = *c.MaxRange
	}
	if c.MinIntensity != nil {
		s.Ramp.MinIntensity = *c.MinIntensity
	}
	if c.MaxIntensity != nil {
		s.Ramp.MaxIntensity = *c.MaxIntensity
	}
	setColor(&s.Ramp.MinColor, c.MinColor)
	setColor(&s.Ramp.MaxColor, c.MaxColor)
	setColor(&s.Overlay.Foreground, c.Foreground)
	setColor(&s.Overlay.Background, c.Background)
	if c.AutoWindow != nil {
		s.AutoWindow = *c.AutoWindow
	}
	return s
}

func setColor(dst *l2fan.RGB, s *string) {
	if s == nil {
		return
	}
	if v, err := l2fan.ParseRGB(*s); err == nil {
		*dst = v
	}
}
