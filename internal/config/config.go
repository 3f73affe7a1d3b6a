package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM     LLMConfig     `toml:"llm"`
	Stream  StreamConfig  `toml:"stream"`
	Gateway GatewayConfig `toml:"gateway"`
	DB      DBConfig      `toml:"db"`
	Trace   TraceConfig   `toml:"trace"`

	BraveAPIKey string `toml:"brave_api_key"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// StreamConfig tunes the event pipeline: liveness timeouts, queue capacity,
// and the marker pair that hides reasoning inside the visible stream.
type StreamConfig struct {
	Deadline    duration `toml:"deadline"`
	WaitTimeout duration `toml:"wait_timeout"`
	QueueSize   int      `toml:"queue_size"`
	MarkerOpen  string   `toml:"marker_open"`
	MarkerClose string   `toml:"marker_close"`
	Lookahead   int      `toml:"lookahead"`
	DebugEvents int      `toml:"debug_events"`
	Debug       bool     `toml:"debug"`
}

type GatewayConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
}

// duration lets TOML carry values like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "gpt-5-mini",
			BaseURL: "",
		},
		Stream: StreamConfig{
			Deadline:    duration{30 * time.Second},
			WaitTimeout: duration{time.Second},
			QueueSize:   256,
			MarkerOpen:  "<thinking>",
			MarkerClose: "</thinking>",
			Lookahead:   20,
			DebugEvents: 100,
		},
		Gateway: GatewayConfig{
			Addr: ":8686",
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
	}
}

// Load merges the config file, if present, over the defaults.
func Load() (*Config, error) {
	cfg := Default()

	path := Path()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}

	return cfg, nil
}

// Path returns the config file location.
func Path() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "eddy", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "eddy", "eddy.db")
}
