package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load("", []string{"SAFECLICK_API_KEY=k"})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "gemini", cfg.Provider.Name)
	assert.Equal(t, "k", cfg.Provider.APIKey)
	assert.Equal(t, SourceEmbed, cfg.Prompts.Source)
	assert.Equal(t, 8000, cfg.Limits.TokenBudget)
	assert.Equal(t, PolicyReject, cfg.ChatPolicy)
	assert.NotNil(t, cfg.Logger())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "safeclick.yaml", `
server:
  host: 127.0.0.1
  port: 9000
  cors_origins: [https://app.example]
log_level: debug
provider:
  name: OpenAI
  model: gpt-4o
  api_key: from-file
prompts:
  source: git
  location: https://example.com/prompts.git
  ttl: 1m
limits:
  token_budget: 4000
  max_upload_bytes: 1048576
chat_policy: cancel
`)
	cfg, err := Load(path, []string{
		"SAFECLICK_API_KEY=from-env",
		"SAFECLICK_PORT=9100",
		"SAFECLICK_CORS_ORIGINS=https://a.example|https://b.example",
		"SAFECLICK_PROMPTS_TTL=30s",
		"UNRELATED=1",
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
	assert.Equal(t, SourceGit, cfg.Prompts.Source)
	assert.Equal(t, 30*time.Second, cfg.Prompts.TTL)
	assert.Equal(t, 4000, cfg.Limits.TokenBudget)
	assert.Equal(t, int64(1<<20), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, PolicyCancel, cfg.ChatPolicy)
}

func TestLoad_FallbackKeys(t *testing.T) {
	t.Parallel()
	cfg, err := Load("", []string{"API_KEY=legacy", "PORT=7000", "LOG_LEVEL=warn"})
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Provider.APIKey)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "WARN", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()
	tests := map[string][]string{
		"missing api key":      nil,
		"unknown provider":     {"SAFECLICK_API_KEY=k", "SAFECLICK_PROVIDER=bard"},
		"dir without location": {"SAFECLICK_API_KEY=k", "SAFECLICK_PROMPTS_SOURCE=dir"},
		"bad port":             {"SAFECLICK_API_KEY=k", "SAFECLICK_PORT=0"},
		"bad policy":           {"SAFECLICK_API_KEY=k", "SAFECLICK_CHAT_POLICY=queue"},
		"bad level":            {"SAFECLICK_API_KEY=k", "SAFECLICK_LOG_LEVEL=loud"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load("", environ)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_OllamaNeedsNoKey(t *testing.T) {
	t.Parallel()
	cfg, err := Load("", []string{"SAFECLICK_PROVIDER=ollama"})
	require.NoError(t, err)
	assert.Empty(t, cfg.Provider.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "provider: [\n"), nil)
	require.Error(t, err)

	_, err = Load(writeFile(t, "unknown.yaml", "colour: red\n"), nil)
	require.Error(t, err)

	_, err = Load("", []string{"SAFECLICK_API_KEY=k", "SAFECLICK_PORT=eighty"})
	require.Error(t, err)

	cfg, err := Load(writeFile(t, "empty.yaml", "\n"), []string{"SAFECLICK_API_KEY=k"})
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnviron_Dotenv(t *testing.T) {
	t.Setenv("SAFECLICK_TEST_SET", "process")
	path := writeFile(t, ".env", "SAFECLICK_TEST_SET=file\nSAFECLICK_TEST_ONLY=file\n")

	environ, err := Environ(path, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Contains(t, environ, "SAFECLICK_TEST_SET=process")
	assert.NotContains(t, environ, "SAFECLICK_TEST_SET=file")
	assert.Contains(t, environ, "SAFECLICK_TEST_ONLY=file")
}
