package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	DB        DBConfig        `yaml:"db"`
	Auth      AuthConfig      `yaml:"auth"`
	Program   ProgramConfig   `yaml:"program"`
	Faucet    FaucetConfig    `yaml:"faucet"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "http" or "stdio"
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig maps client names to bearer tokens.
type AuthConfig struct {
	Enabled bool              `yaml:"enabled"`
	Tokens  map[string]string `yaml:"tokens"`
}

type ProgramConfig struct {
	// ID is the hex program address. Empty selects address.DefaultProgram.
	ID            string `yaml:"id"`
	RecordDeposit uint64 `yaml:"record_deposit"`
}

type FaucetConfig struct {
	Enabled   bool   `yaml:"enabled"`
	MaxAmount uint64 `yaml:"max_amount"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	// RedisAddr switches the status cache to Redis when set.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Path: "focusstake.db",
		},
		Cache: CacheConfig{
			TTL:        10 * time.Minute,
			MaxEntries: 10_000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("FOCUS_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("FOCUS_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("FOCUS_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if mode := os.Getenv("FOCUS_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if dbPath := os.Getenv("FOCUS_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if err := envBool("FOCUS_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return err
	}
	// FOCUS_AUTH_TOKENS is a comma separated list of name=token pairs.
	if raw := os.Getenv("FOCUS_AUTH_TOKENS"); raw != "" {
		tokens, err := parseTokens(raw)
		if err != nil {
			return err
		}
		cfg.Auth.Tokens = tokens
	}
	if id := os.Getenv("FOCUS_PROGRAM_ID"); id != "" {
		cfg.Program.ID = id
	}
	if err := envUint("FOCUS_RECORD_DEPOSIT", &cfg.Program.RecordDeposit); err != nil {
		return err
	}
	if err := envBool("FOCUS_FAUCET_ENABLED", &cfg.Faucet.Enabled); err != nil {
		return err
	}
	if err := envUint("FOCUS_FAUCET_MAX", &cfg.Faucet.MaxAmount); err != nil {
		return err
	}
	if ttl := os.Getenv("FOCUS_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid FOCUS_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if addr := os.Getenv("FOCUS_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if pw := os.Getenv("FOCUS_REDIS_PASSWORD"); pw != "" {
		cfg.Cache.RedisPassword = pw
	}
	if err := envInt("FOCUS_REDIS_DB", &cfg.Cache.RedisDB); err != nil {
		return err
	}
	if level := os.Getenv("FOCUS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("FOCUS_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	return nil
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q: want http or stdio", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Program.ID != "" {
		if _, err := address.Parse(c.Program.ID); err != nil {
			return fmt.Errorf("invalid program id: %w", err)
		}
	}
	if c.Auth.Enabled && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth enabled without tokens")
	}
	return nil
}

// ProgramAddress returns the configured program ID.
func (c Config) ProgramAddress() address.Address {
	if c.Program.ID == "" {
		return address.DefaultProgram
	}
	return address.MustParse(c.Program.ID)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func parseTokens(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, token, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || token == "" {
			return nil, fmt.Errorf("invalid FOCUS_AUTH_TOKENS entry %q: want name=token", pair)
		}
		tokens[name] = token
	}
	return tokens, nil
}

func envInt(key string, dst *int) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func envUint(key string, dst *uint64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func envBool(key string, dst *bool) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
