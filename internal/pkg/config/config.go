package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Map       MapConfig       `mapstructure:"map"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// MapConfig tunes the map view controller of every session.
type MapConfig struct {
	NarrowBreakpoint    int     `mapstructure:"narrow_breakpoint"`     // px; below it the bottom panel is shown
	BottomPanelFraction float64 `mapstructure:"bottom_panel_fraction"` // share of viewport height covered on narrow screens
	HeaderHeight        int     `mapstructure:"header_height"`         // px of fixed header (top inset)
	PointZoom           float64 `mapstructure:"point_zoom"`
	MaxZoom             float64 `mapstructure:"max_zoom"`
	ZoomGapThreshold    float64 `mapstructure:"zoom_gap_threshold"`
	FlyDurationMS       int     `mapstructure:"fly_duration_ms"`
	FitPadding          int     `mapstructure:"fit_padding"`
	PopupSequencing     string  `mapstructure:"popup_sequencing"` // "completion" | "fixed_delay"
	TouchPopupDelayMS   int     `mapstructure:"touch_popup_delay_ms"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "archmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "archmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("map.narrow_breakpoint", 768)
	v.SetDefault("map.bottom_panel_fraction", 0.45)
	v.SetDefault("map.header_height", 64)
	v.SetDefault("map.point_zoom", 17)
	v.SetDefault("map.max_zoom", 19)
	v.SetDefault("map.zoom_gap_threshold", 2)
	v.SetDefault("map.fly_duration_ms", 1000)
	v.SetDefault("map.fit_padding", 48)
	v.SetDefault("map.popup_sequencing", "completion")
	v.SetDefault("map.touch_popup_delay_ms", 1100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ARCHMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("ARCHMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Map.NarrowBreakpoint <= 0 {
		errs = append(errs, "map.narrow_breakpoint must be positive")
	}
	if c.Map.BottomPanelFraction < 0 || c.Map.BottomPanelFraction >= 1 {
		errs = append(errs, fmt.Sprintf("map.bottom_panel_fraction must be in [0, 1), got %.2f", c.Map.BottomPanelFraction))
	}
	if c.Map.HeaderHeight < 0 {
		errs = append(errs, "map.header_height must not be negative")
	}
	if c.Map.PointZoom <= 0 || c.Map.PointZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.point_zoom must be in (0, %.0f], got %.1f", c.Map.MaxZoom, c.Map.PointZoom))
	}
	if c.Map.ZoomGapThreshold < 0 {
		errs = append(errs, "map.zoom_gap_threshold must not be negative")
	}
	switch c.Map.PopupSequencing {
	case "completion", "fixed_delay":
	default:
		errs = append(errs, fmt.Sprintf("map.popup_sequencing must be completion or fixed_delay, got %q", c.Map.PopupSequencing))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
