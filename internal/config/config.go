package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server Server `yaml:"server"`
	Board  Board  `yaml:"board"`
	Canvas Canvas `yaml:"canvas"`
}

type Server struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Board holds the session and history tuning knobs for the shared surface.
type Board struct {
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"` // idle sessions are swept after this
	DetachGrace       time.Duration `yaml:"detach_grace"`       // empty sessions survive reconnect churn this long
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	HistoryLimit      int           `yaml:"history_limit"` // retained drawing events
	SendBuffer        int           `yaml:"send_buffer"`   // per-connection outbound queue
}

// Canvas is advertised to clients so every raster has the same dimensions.
type Canvas struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 3030,
		},
		Board: Board{
			InactivityTimeout: 30 * time.Minute,
			DetachGrace:       30 * time.Second,
			SweepInterval:     5 * time.Minute,
			HistoryLimit:      1000,
			SendBuffer:        64,
		},
		Canvas: Canvas{
			Width:  1280,
			Height: 720,
		},
	}
}

// Load reads the YAML file at path over the built-in defaults. A missing file
// is not an error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Board.HistoryLimit < 1 {
		return fmt.Errorf("board.history_limit must be positive: %d", c.Board.HistoryLimit)
	}
	if c.Board.SendBuffer < 1 {
		return fmt.Errorf("board.send_buffer must be positive: %d", c.Board.SendBuffer)
	}
	if c.Canvas.Width < 1 || c.Canvas.Height < 1 {
		return fmt.Errorf("canvas dimensions must be positive: %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Board.DetachGrace < 0 || c.Board.InactivityTimeout <= 0 {
		return fmt.Errorf("board timeouts must be positive")
	}
	return nil
}
