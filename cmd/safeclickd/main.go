// Command safeclickd serves the SafeClick threat analysis API.
//
// Settings come from the YAML file named by SAFECLICK_CONFIG, a .env file in the working
// directory and the process environment, in increasing order of precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
	"github.com/safeclick/safeclick/adapter/anthropic"
	"github.com/safeclick/safeclick/adapter/gemini"
	"github.com/safeclick/safeclick/adapter/ollama"
	"github.com/safeclick/safeclick/adapter/openai"
	"github.com/safeclick/safeclick/builder"
	"github.com/safeclick/safeclick/ext/tracing"
	"github.com/safeclick/safeclick/fileregistry"
	"github.com/safeclick/safeclick/intel"
	"github.com/safeclick/safeclick/internal/config"
	"github.com/safeclick/safeclick/internal/httpserver"
	"github.com/safeclick/safeclick/internal/middleware"
	"github.com/safeclick/safeclick/mediafetch"
	"github.com/safeclick/safeclick/prompts"
	"github.com/safeclick/safeclick/remoteregistry"
	"github.com/safeclick/safeclick/remoteregistry/git"
	"github.com/safeclick/safeclick/session"
)

const (
	exitOK      = 0
	exitConfig  = 2
	exitRuntime = 1
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "safeclickd: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.FromEnvironment()
	if err != nil {
		return exitConfig, err
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, closeReg, err := newRegistry(cfg, logger)
	if err != nil {
		return exitConfig, err
	}
	defer func() { _ = closeReg.Close() }()

	b, err := builder.New(ctx, reg, builder.WithTokenBudget(cfg.Limits.TokenBudget), builder.WithEnv(cfg.Prompts.Env))
	if err != nil {
		return exitConfig, fmt.Errorf("load prompts: %w", err)
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return exitConfig, err
	}
	if cfg.Tracing {
		client = tracing.Wrap(client)
	}

	svc := intel.New(b, client,
		intel.WithLogger(logger),
		intel.WithChatPolicy(chatPolicy(cfg.ChatPolicy)),
		intel.WithMediaFetcher(mediafetch.New(mediafetch.WithMaxBytes(cfg.Limits.MaxUploadBytes))),
	)
	router := httpserver.New(svc,
		httpserver.WithLogger(logger),
		httpserver.WithMaxUploadBytes(cfg.Limits.MaxUploadBytes),
		httpserver.WithCORSOrigins(cfg.Server.CORSOrigins...),
		httpserver.WithHealthCheckers(map[string]middleware.HealthChecker{
			"prompts": promptsCheck(reg, cfg.Prompts.Env),
		}),
	)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("safeclickd listening", "addr", srv.Addr, "provider", cfg.Provider.Name, "prompts", cfg.Prompts.Source)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	router.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown: %w", err)
	}
	return exitOK, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newRegistry opens the configured prompt source. The closer releases remote resources.
func newRegistry(cfg *config.Config, logger *slog.Logger) (safeclick.PromptRegistry, io.Closer, error) {
	p := cfg.Prompts
	switch p.Source {
	case config.SourceEmbed:
		reg, err := prompts.Registry()
		return reg, nopCloser{}, err
	case config.SourceDir:
		return fileregistry.New(p.Location, fileregistry.WithLogger(logger)), nopCloser{}, nil
	case config.SourceHTTP:
		f, err := remoteregistry.NewHTTPFetcher(p.Location)
		if err != nil {
			return nil, nil, err
		}
		reg := remoteregistry.New(f, remoteregistry.WithTTL(p.TTL), remoteregistry.WithLogger(logger))
		return reg, reg, nil
	case config.SourceGit:
		opts := []git.Option{git.WithLogger(logger), git.WithPullInterval(p.TTL)}
		if p.Ref != "" {
			opts = append(opts, git.WithBranch(p.Ref))
		}
		f, err := git.NewFetcher(p.Location, opts...)
		if err != nil {
			return nil, nil, err
		}
		reg := remoteregistry.New(f, remoteregistry.WithTTL(p.TTL), remoteregistry.WithLogger(logger))
		return reg, reg, nil
	}
	return nil, nil, fmt.Errorf("unknown prompt source %q", p.Source)
}

// newClient builds the provider client named in cfg.
func newClient(ctx context.Context, cfg *config.Config) (adapter.Client, error) {
	p := cfg.Provider
	hc := &http.Client{Timeout: p.Timeout}
	switch p.Name {
	case "gemini":
		return gemini.NewClient(ctx, gemini.ClientConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.Model, HTTPClient: hc})
	case "openai":
		return openai.NewClient(openai.ClientConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.Model, HTTPClient: hc}), nil
	case "anthropic":
		return anthropic.NewClient(anthropic.ClientConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.Model, HTTPClient: hc}), nil
	case "ollama":
		return ollama.NewClient(ollama.ClientConfig{BaseURL: p.BaseURL, Model: p.Model, HTTPClient: hc})
	}
	return nil, fmt.Errorf("unknown provider %q", p.Name)
}

func chatPolicy(name string) session.BusyPolicy {
	if name == config.PolicyCancel {
		return session.CancelPrevious
	}
	return session.RejectWhileBusy
}

// promptsCheck reports whether every prompt still resolves from reg.
func promptsCheck(reg safeclick.PromptRegistry, env string) middleware.CheckFunc {
	return func(ctx context.Context) error {
		for _, name := range prompts.Names {
			if _, err := reg.GetTemplate(ctx, name, env); err != nil {
				return err
			}
		}
		return nil
	}
}
