package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultMediaDir, cfg.Media.Dir)
	assert.Empty(t, cfg.Accounts)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
[server]
addr = ":9090"

[auth]
jwt_secret = "s3cret"
token_ttl = "1h"

[postgres]
dsn = "postgres://bluetap:pw@localhost:5432/bluetap"

[dispatch]
agent_endpoint = "http://127.0.0.1:8081/v1/events"
timeout_seconds = 30

[[accounts]]
id = "work"
server_url = "http://10.0.0.5:1234"
server_password = "hunter2"
dm_policy = "pairing"
allow_from = ["+15550001111"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TTL())
	assert.Equal(t, "postgres://bluetap:pw@localhost:5432/bluetap", cfg.Postgres.DSN)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.Timeout())

	require.Len(t, cfg.Accounts, 1)
	account := cfg.Accounts[0]
	assert.Equal(t, "work", account.ID)
	assert.Equal(t, "http://10.0.0.5:1234", account.ServerURL)
	assert.Equal(t, "pairing", account.DMPolicy)
	assert.Equal(t, []string{"+15550001111"}, account.AllowFrom)

	require.NoError(t, cfg.Validate())
}

func TestLoadMergesAccountsFile(t *testing.T) {
	dir := t.TempDir()
	accountsPath := writeFile(t, dir, "accounts.yaml", `
accounts:
  - id: personal
    server_url: http://10.0.0.6:1234
    dm_policy: allowlist
    allow_from:
      - me@example.com
`)
	path := writeFile(t, dir, "config.toml", `
accounts_file = "`+accountsPath+`"

[[accounts]]
id = "work"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "work", cfg.Accounts[0].ID)
	assert.Equal(t, "personal", cfg.Accounts[1].ID)
	assert.Equal(t, []string{"me@example.com"}, cfg.Accounts[1].AllowFrom)
}

func TestLoadAccountsFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
accounts_file = "`+filepath.Join(dir, "missing.yaml")+`"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateDuplicateAccountID(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Accounts = []Account{
		{ID: "work"},
		{ID: "Work"},
	}

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate account id")
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Accounts = []Account{{ID: "work", DMPolicy: "sometimes"}}

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingAccountID(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Accounts = []Account{{ServerURL: "http://10.0.0.5:1234"}}

	assert.Error(t, cfg.Validate())
}

func TestValidateAccounts(t *testing.T) {
	err := ValidateAccounts([]Account{
		{ID: "work", DMPolicy: "pairing"},
		{ID: "personal", GroupPolicy: "allowlist"},
	})
	assert.NoError(t, err)

	err = ValidateAccounts([]Account{{ID: "work"}, {ID: "WORK"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate account id")

	err = ValidateAccounts([]Account{{ID: "work", GroupPolicy: "pairing"}})
	assert.Error(t, err, "pairing is not a valid group policy")
}

func TestAuthTTLFallback(t *testing.T) {
	assert.Equal(t, 24*time.Hour, AuthConfig{}.TTL())
	assert.Equal(t, 24*time.Hour, AuthConfig{TokenTTL: "bogus"}.TTL())
	assert.Equal(t, 30*time.Minute, AuthConfig{TokenTTL: "30m"}.TTL())
}

func TestDispatchTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultAgentTimeout, DispatchConfig{}.Timeout())
	assert.Equal(t, 5*time.Second, DispatchConfig{TimeoutSeconds: 5}.Timeout())
}
