// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the chesstris server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// WebSocketConfig holds the websocket listener settings.
type WebSocketConfig struct {
	Address         string `mapstructure:"address"`
	ReadBufferSize  int    `mapstructure:"read_buffer_size"`
	WriteBufferSize int    `mapstructure:"write_buffer_size"`
}

// GameConfig holds rules-engine defaults applied to new games.
type GameConfig struct {
	BoardWidth      int           `mapstructure:"board_width"`
	BoardHeight     int           `mapstructure:"board_height"`
	GravityInterval time.Duration `mapstructure:"gravity_interval"`
}

// DatabaseConfig holds the optional result-store settings. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration file at path, applying defaults and
// CHESSTRIS_-prefixed environment overrides. A missing file is not an
// error; defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHESSTRIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)

	v.SetDefault("game.board_width", 24)
	v.SetDefault("game.board_height", 24)
	v.SetDefault("game.gravity_interval", time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
