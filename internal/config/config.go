// Package config loads the service configuration from a TOML file plus an
// optional YAML accounts file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultTokenTTL     = "24h"
	DefaultMediaDir     = "data/media"
	DefaultAgentTimeout = 60 * time.Second
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Media    MediaConfig    `toml:"media"`
	Notify   NotifyConfig   `toml:"notify"`
	Dispatch DispatchConfig `toml:"dispatch"`

	// AccountsFile points at an optional YAML file whose accounts are
	// appended to the inline list.
	AccountsFile string    `toml:"accounts_file"`
	Accounts     []Account `toml:"accounts" validate:"dive"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	TokenTTL  string `toml:"token_ttl"`
}

// TTL parses the configured token lifetime, falling back to the default on
// empty or malformed input.
func (a AuthConfig) TTL() time.Duration {
	raw := strings.TrimSpace(a.TokenTTL)
	if raw == "" {
		raw = DefaultTokenTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		ttl, _ = time.ParseDuration(DefaultTokenTTL)
	}
	return ttl
}

type PostgresConfig struct {
	// DSN is a pgx connection string. Empty means no database: pairing
	// state is held in memory and lost on restart.
	DSN string `toml:"dsn"`
}

type MediaConfig struct {
	Dir                string `toml:"dir"`
	MaxAttachmentBytes int64  `toml:"max_attachment_bytes" validate:"omitempty,min=0"`
}

type NotifyConfig struct {
	Host     string   `toml:"host"`
	Port     int      `toml:"port" validate:"omitempty,min=1,max=65535"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	Security string   `toml:"security" validate:"omitempty,oneof=tls starttls none"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
}

type DispatchConfig struct {
	AgentEndpoint  string `toml:"agent_endpoint" validate:"omitempty,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"omitempty,min=1"`
}

// Timeout returns the dispatch timeout, defaulting when unset.
func (d DispatchConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return DefaultAgentTimeout
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Account configures one BlueBubbles account. The same shape is accepted in
// the TOML config and the YAML accounts file.
type Account struct {
	ID                 string   `toml:"id" yaml:"id" validate:"required"`
	AgentID            string   `toml:"agent_id" yaml:"agent_id"`
	WebhookPath        string   `toml:"webhook_path" yaml:"webhook_path"`
	WebhookPassword    string   `toml:"webhook_password" yaml:"webhook_password"`
	ServerURL          string   `toml:"server_url" yaml:"server_url" validate:"omitempty,url"`
	ServerPassword     string   `toml:"server_password" yaml:"server_password"`
	DMPolicy           string   `toml:"dm_policy" yaml:"dm_policy" validate:"omitempty,oneof=disabled open allowlist pairing"`
	GroupPolicy        string   `toml:"group_policy" yaml:"group_policy" validate:"omitempty,oneof=disabled open allowlist"`
	AllowFrom          []string `toml:"allow_from" yaml:"allow_from"`
	GroupAllowFrom     []string `toml:"group_allow_from" yaml:"group_allow_from"`
	MaxAttachmentBytes int64    `toml:"max_attachment_bytes" yaml:"max_attachment_bytes" validate:"omitempty,min=0"`
	ChunkLimit         int      `toml:"chunk_limit" yaml:"chunk_limit" validate:"omitempty,min=1"`
	ChunkerMode        string   `toml:"chunker_mode" yaml:"chunker_mode" validate:"omitempty,oneof=text markdown"`
}

// Load reads the TOML config at path, merges the YAML accounts file when one
// is configured, and returns the result with defaults applied. A missing
// config file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		Media: MediaConfig{
			Dir: DefaultMediaDir,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if cfg.AccountsFile != "" {
		accounts, err := LoadAccounts(cfg.AccountsFile)
		if err != nil {
			return cfg, fmt.Errorf("accounts file %s: %w", cfg.AccountsFile, err)
		}
		cfg.Accounts = append(cfg.Accounts, accounts...)
	}

	return cfg, nil
}

// LoadAccounts reads a YAML accounts file: a document with a top-level
// `accounts:` list.
func LoadAccounts(path string) ([]Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Accounts []Account `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc.Accounts, nil
}

// Validate checks struct tags and rejects duplicate account ids.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}
	return checkDuplicateIDs(c.Accounts)
}

// ValidateAccounts checks a standalone account list against the same rules
// Validate applies to the inline accounts.
func ValidateAccounts(accounts []Account) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	for i, account := range accounts {
		if err := v.Struct(account); err != nil {
			return fmt.Errorf("account %d (%s): %w", i, account.ID, err)
		}
	}
	return checkDuplicateIDs(accounts)
}

// checkDuplicateIDs rejects repeated account ids, case-insensitively.
func checkDuplicateIDs(accounts []Account) error {
	seen := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		id := strings.ToLower(strings.TrimSpace(account.ID))
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate account id: %s", account.ID)
		}
		seen[id] = struct{}{}
	}
	return nil
}
