// Package config loads the robot configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/botlink/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "botlink.yaml"

var ErrInvalid = errors.New("invalid configuration")

// Config is the full robot configuration.
type Config struct {
	Name               string        `mapstructure:"name"`
	Password           string        `mapstructure:"password"`
	Addresses          []string      `mapstructure:"addresses"`
	Secure             bool          `mapstructure:"secure"`
	Verify             bool          `mapstructure:"verify"`
	Transport          string        `mapstructure:"transport"`
	SocketPort         int           `mapstructure:"socket_port"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	AuthenticatedDelay time.Duration `mapstructure:"authenticated_delay"`

	Store  Store  `mapstructure:"store"`
	MQTT   MQTT   `mapstructure:"mqtt"`
	Status Status `mapstructure:"status"`
	Log    Log    `mapstructure:"log"`
}

// Store selects where the last prepared program is kept.
type Store struct {
	Kind  string `mapstructure:"kind"`
	Path  string `mapstructure:"path"`
	Redis Redis  `mapstructure:"redis"`

	// EncryptionKey seals stored programs with AES-256 when set (base64, 32 bytes).
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

// Encryption parses the store keys. It returns nil when encryption is off.
func (s Store) Encryption() (*middleware.EncryptionConfig, error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, fmt.Errorf("%w: store.fallback_keys needs store.encryption_key", ErrInvalid)
		}
		return nil, nil
	}
	active, err := middleware.ParseKey(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: store.encryption_key: %v", ErrInvalid, err)
	}
	enc := &middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range s.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("%w: store.fallback_keys[%d]: %v", ErrInvalid, i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return enc, nil
}

type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// MQTT enables the hardware bridge when Broker is set.
type MQTT struct {
	Broker   string        `mapstructure:"broker"`
	ClientID string        `mapstructure:"client_id"`
	Prefix   string        `mapstructure:"prefix"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Status enables the local HTTP surface when Address is set.
type Status struct {
	Address string `mapstructure:"address"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	TransportWebsocket = "websocket"
	TransportSocket    = "socket"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Secure:             true,
		Verify:             true,
		Transport:          TransportWebsocket,
		SocketPort:         5000,
		ReconnectAttempts:  10,
		AuthenticatedDelay: time.Second,
		Store: Store{
			Kind: StoreFile,
			Path: ".botlink/programs",
		},
		MQTT: MQTT{
			Prefix:  "botlink",
			Timeout: 30 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Files ending in .json are decoded as JSON, anything else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, cfg.Validate()
}

func decode(raw map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	if !slices.Contains([]string{TransportWebsocket, TransportSocket}, c.Transport) {
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}
	if !slices.Contains([]string{StoreMemory, StoreFile, StoreBolt, StoreRedis}, c.Store.Kind) {
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalid, c.Store.Kind)
	}
	if c.Store.Kind == StoreRedis && c.Store.Redis.Address == "" {
		return fmt.Errorf("%w: redis store needs store.redis.address", ErrInvalid)
	}
	if _, err := c.Store.Encryption(); err != nil {
		return err
	}
	if c.SocketPort <= 0 || c.SocketPort > 65535 {
		return fmt.Errorf("%w: socket_port %d out of range", ErrInvalid, c.SocketPort)
	}
	return nil
}
