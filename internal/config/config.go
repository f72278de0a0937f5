// Package config loads safeclickd settings: a YAML file, then .env values, then the
// process environment, each layer overriding the previous one.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"gopkg.in/yaml.v3"
)

// PathVar names the environment variable holding the config file path.
const PathVar = "SAFECLICK_CONFIG"

// Prompt sources.
const (
	SourceEmbed = "embed"
	SourceDir   = "dir"
	SourceHTTP  = "http"
	SourceGit   = "git"
)

// Chat busy policies.
const (
	PolicyReject = "reject"
	PolicyCancel = "cancel"
)

// ErrInvalid is returned when the merged configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Server holds HTTP listener settings.
type Server struct {
	Host            string        `yaml:"host" env:"SAFECLICK_HOST"`
	Port            int           `yaml:"port" env:"SAFECLICK_PORT,PORT" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SAFECLICK_SHUTDOWN_TIMEOUT" validate:"min=0"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"SAFECLICK_CORS_ORIGINS"`
}

// Addr is host:port.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// Provider selects the model backend.
type Provider struct {
	Name    string        `yaml:"name" env:"SAFECLICK_PROVIDER" validate:"oneof=gemini openai anthropic ollama"`
	Model   string        `yaml:"model" env:"SAFECLICK_MODEL"`
	APIKey  string        `yaml:"api_key" env:"SAFECLICK_API_KEY,API_KEY"`
	BaseURL string        `yaml:"base_url" env:"SAFECLICK_BASE_URL" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" env:"SAFECLICK_PROVIDER_TIMEOUT" validate:"min=0"`
}

// Prompts selects where prompt manifests are loaded from.
type Prompts struct {
	Source   string        `yaml:"source" env:"SAFECLICK_PROMPTS_SOURCE" validate:"oneof=embed dir http git"`
	Location string        `yaml:"location" env:"SAFECLICK_PROMPTS_LOCATION"`
	Ref      string        `yaml:"ref" env:"SAFECLICK_PROMPTS_REF"`
	Env      string        `yaml:"env" env:"SAFECLICK_PROMPTS_ENV"`
	TTL      time.Duration `yaml:"ttl" env:"SAFECLICK_PROMPTS_TTL" validate:"min=0"`
}

// Limits bounds request sizes.
type Limits struct {
	TokenBudget    int   `yaml:"token_budget" env:"SAFECLICK_TOKEN_BUDGET" validate:"min=1"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"SAFECLICK_MAX_UPLOAD_BYTES" validate:"min=1"`
}

// Config is the full daemon configuration.
type Config struct {
	Server     Server   `yaml:"server"`
	LogLevel   string   `yaml:"log_level" env:"SAFECLICK_LOG_LEVEL,LOG_LEVEL" validate:"oneof=DEBUG INFO WARN ERROR"`
	Provider   Provider `yaml:"provider"`
	Prompts    Prompts  `yaml:"prompts"`
	Limits     Limits   `yaml:"limits"`
	ChatPolicy string   `yaml:"chat_policy" env:"SAFECLICK_CHAT_POLICY" validate:"oneof=reject cancel"`
	Tracing    bool     `yaml:"tracing" env:"SAFECLICK_TRACING"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server: Server{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		LogLevel: "INFO",
		Provider: Provider{
			Name:    "gemini",
			Timeout: 2 * time.Minute,
		},
		Prompts: Prompts{
			Source: SourceEmbed,
			TTL:    5 * time.Minute,
		},
		Limits: Limits{
			TokenBudget:    8000,
			MaxUploadBytes: 50 << 20,
		},
		ChatPolicy: PolicyReject,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if c.Provider.Name != "ollama" && c.Provider.APIKey == "" {
			sl.ReportError(c.Provider.APIKey, "Provider.APIKey", "APIKey", "required_unless_ollama", "")
		}
		if c.Prompts.Source != SourceEmbed && c.Prompts.Location == "" {
			sl.ReportError(c.Prompts.Location, "Prompts.Location", "Location", "required_unless_embed", "")
		}
	}, Config{})
	return v
}

// Load reads the YAML file at path (skipped when path is empty), overlays environ
// ("KEY=value" pairs) and validates the result.
func Load(path string, environ []string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := decodeYAML(f, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	cfg.Provider.Name = strings.ToLower(cfg.Provider.Name)
	cfg.Prompts.Source = strings.ToLower(cfg.Prompts.Source)
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Environ returns the process environment extended with the variables of the dotenv
// files. Variables already set in the process win; missing files are skipped.
func Environ(dotenv ...string) ([]string, error) {
	out := os.Environ()
	added := make(map[string]bool)
	for _, name := range dotenv {
		vars, err := godotenv.Read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", name, err)
		}
		for k, v := range vars {
			if _, set := os.LookupEnv(k); !set && !added[k] {
				added[k] = true
				out = append(out, k+"="+v)
			}
		}
	}
	return out, nil
}

// FromEnvironment loads the config named by PathVar with .env support.
func FromEnvironment() (*Config, error) {
	environ, err := Environ(".env")
	if err != nil {
		return nil, err
	}
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	return Load(es[PathVar], environ)
}

// Logger returns the structured logger for c.LogLevel.
func (c *Config) Logger() *slog.Logger {
	return logs.GetLoggerFromString(c.LogLevel)
}
