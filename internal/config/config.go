package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rocketscienceinc/tictactoe-session/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
	"github.com/rocketscienceinc/tictactoe-session/internal/tictactoe"
)

type Config struct {
	LogLevel   string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string        `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	SessionTTL time.Duration `yaml:"session-ttl" env:"SESSION_TTL" env-default:"24h"`
	Redis      Redis         `yaml:"redis"`
	Icons      Icons         `yaml:"icons"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Icons - the markers players may choose from, in the order used for reassignment.
type Icons struct {
	Allowed []string `yaml:"allowed" env:"ICONS_ALLOWED" env-default:"❌,⭕,⭐,❤️,🐱,🐶"`
	Player1 string   `yaml:"player1" env:"ICONS_PLAYER1" env-default:"❌"`
	Player2 string   `yaml:"player2" env:"ICONS_PLAYER2" env-default:"⭕"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads the config file, applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func (that *Config) Validate() error {
	if err := tictactoe.ValidateMarkerSet(that.Icons.AllowedMarkers()); err != nil {
		return fmt.Errorf("icons: %w", err)
	}

	defaults := that.Icons.Defaults()
	for _, marker := range []entity.Marker{defaults.Player1, defaults.Player2} {
		if !that.Icons.contains(marker) {
			return fmt.Errorf("icons: %w: %q", apperror.ErrUnknownMarker, marker)
		}
	}

	if defaults.Player1 == defaults.Player2 {
		return fmt.Errorf("icons: %w", apperror.ErrSameMarkers)
	}

	if that.SessionTTL <= 0 {
		return fmt.Errorf("session-ttl must be positive, got %s", that.SessionTTL)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Icons) AllowedMarkers() []entity.Marker {
	markers := make([]entity.Marker, 0, len(that.Allowed))
	for _, icon := range that.Allowed {
		markers = append(markers, entity.Marker(icon))
	}

	return markers
}

func (that *Icons) Defaults() entity.Markers {
	return entity.Markers{
		Player1: entity.Marker(that.Player1),
		Player2: entity.Marker(that.Player2),
	}
}

func (that *Icons) contains(marker entity.Marker) bool {
	for _, icon := range that.Allowed {
		if entity.Marker(icon) == marker {
			return true
		}
	}

	return false
}
