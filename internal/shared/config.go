package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API       APIConfig       `toml:"api"`
	Simulator SimulatorConfig `toml:"simulator"`
	Player    PlayerConfig    `toml:"player"`
	Download  DownloadConfig  `toml:"download"`
	Database  DatabaseConfig  `toml:"database"`
	UI        UIConfig        `toml:"ui"`
	DevServer DevServerConfig `toml:"devserver"`
}

// APIConfig describes the remote processing service.
type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	ProcessingPath    string  `toml:"processing_path"`
	DownloadPath      string  `toml:"download_path"`
	ResultFilename    string  `toml:"result_filename"`
	StreamIdleTimeout int     `toml:"stream_idle_timeout"` // seconds without an event before the stream is abandoned
	RateLimit         float64 `toml:"rate_limit"`          // requests per second
}

// SimulatorConfig tunes the simulated progress animation.
type SimulatorConfig struct {
	StartProgress    int `toml:"start_progress"`
	IntervalSeconds  int `toml:"interval_seconds"`
	StopAfterSeconds int `toml:"stop_after_seconds"`
}

// PlayerConfig names the external media player used for playback.
type PlayerConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// DownloadConfig contains download settings.
type DownloadConfig struct {
	Dir string `toml:"dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// UIConfig contains TUI settings.
type UIConfig struct {
	DefaultTheme string `toml:"default_theme"`
	LogFile      string `toml:"log_file"`
}

// DevServerConfig contains settings for the local API emulator.
type DevServerConfig struct {
	Host             string  `toml:"host"`
	Port             int     `toml:"port"`
	StepDelayMS      int     `toml:"step_delay_ms"`
	ResultTTLMinutes int     `toml:"result_ttl_minutes"`
	RateLimit        float64 `toml:"rate_limit"`
	Burst            int     `toml:"burst"`
}

// IdleTimeout returns the stream idle timeout as a [time.Duration].
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.StreamIdleTimeout) * time.Second
}

// Interval returns the simulator tick interval.
func (c SimulatorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// StopAfter returns the simulator guard timeout.
func (c SimulatorConfig) StopAfter() time.Duration {
	return time.Duration(c.StopAfterSeconds) * time.Second
}

// Addr returns the host:port the dev server listens on.
func (c DevServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports settings that would leave the client unusable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is empty", ErrInvalidConfig)
	}
	if c.Simulator.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: simulator.interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.Simulator.StartProgress < 1 || c.Simulator.StartProgress > 99 {
		return fmt.Errorf("%w: simulator.start_progress must be within 1-99", ErrInvalidConfig)
	}
	if c.UI.DefaultTheme != "dark" && c.UI.DefaultTheme != "light" {
		return fmt.Errorf("%w: ui.default_theme must be dark or light", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
