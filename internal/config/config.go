package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"requestbin/internal/bin"
	"requestbin/internal/storage"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Storage StorageConfig `yaml:"storage"`
	Bin     BinConfig     `yaml:"bin"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// MaxBodySize caps captured request bodies in bytes. Zero disables it.
	MaxBodySize int64 `yaml:"max_body_size" validate:"gte=0"`
}

type ProxyConfig struct {
	// ListenAddr enables the capture proxy when set.
	ListenAddr string `yaml:"listen_addr"`
	Bin        string `yaml:"bin" validate:"required_with=ListenAddr"`
}

type StorageConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=memory bolt sqlite"`
	Path            string        `yaml:"path" validate:"required_unless=Backend memory"`
	BinTTL          time.Duration `yaml:"bin_ttl" validate:"gte=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gte=0"`
}

type BinConfig struct {
	MaxRequests   int      `yaml:"max_requests" validate:"gte=1"`
	MaxRawSize    int      `yaml:"max_raw_size" validate:"gte=0"`
	IgnoreHeaders []string `yaml:"ignore_headers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  1 << 20,
		},
		Storage: StorageConfig{
			Backend:         storage.BackendMemory,
			BinTTL:          48 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Bin: BinConfig{
			MaxRequests: bin.DefaultMaxRequests,
			MaxRawSize:  bin.DefaultMaxRawSize,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), a .env file in the working directory (if present) and then the
// process environment, later sources winning.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("PROXY_ADDR", &cfg.Proxy.ListenAddr)
	str("PROXY_BIN", &cfg.Proxy.Bin)
	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v, ok := os.LookupEnv("IGNORE_HEADERS"); ok {
		cfg.Bin.IgnoreHeaders = splitList(v)
	}

	for key, dst := range map[string]*int{
		"MAX_REQUESTS": &cfg.Bin.MaxRequests,
		"MAX_RAW_SIZE": &cfg.Bin.MaxRawSize,
	} {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("MAX_BODY_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_BODY_SIZE: %v", err)
		}
		cfg.Server.MaxBodySize = n
	}

	for key, dst := range map[string]*time.Duration{
		"BIN_TTL":          &cfg.Storage.BinTTL,
		"CLEANUP_INTERVAL": &cfg.Storage.CleanupInterval,
	} {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*dst = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Policy is the capture policy bins are created and loaded with.
func (c *Config) Policy() bin.Policy {
	return bin.Policy{
		MaxRequests:   c.Bin.MaxRequests,
		MaxRawSize:    c.Bin.MaxRawSize,
		IgnoreHeaders: c.Bin.IgnoreHeaders,
	}
}

func (c *Config) StorageOptions() storage.Options {
	return storage.Options{Policy: c.Policy(), BinTTL: c.Storage.BinTTL}
}
