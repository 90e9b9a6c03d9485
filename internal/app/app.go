// Package app assembles the cleaning service from configuration. It is
// shared by the HTTP server and the command-line tool.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/interpret"
	"github.com/JonMunkholm/csvclean/internal/llm"
	"github.com/JonMunkholm/csvclean/internal/pipeline"
	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/JonMunkholm/csvclean/internal/store"
	"github.com/JonMunkholm/csvclean/internal/store/postgres"
	"github.com/JonMunkholm/csvclean/internal/store/sqlite"
)

// App owns the service and the resources behind it.
type App struct {
	Service *core.Service

	close func() error
}

// New opens the configured store, loads tier policies and builds the
// service. Close releases the store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	policies, err := quota.LoadPolicies(cfg.Quota.PolicyFile)
	if err != nil {
		return nil, err
	}

	completer, err := NewCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}

	counter, jobs, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	interpreter := interpret.New(completer, interpret.Config{
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	})

	service := core.NewService(
		quota.NewGate(counter, policies),
		pipeline.New(interpreter),
		jobs,
		core.Options{
			MaxConcurrent: cfg.Clean.MaxConcurrent,
			MaxWait:       cfg.Clean.MaxWaitTime,
			Timeout:       cfg.Clean.Timeout,
			HistoryLimit:  cfg.Clean.HistoryLimit,
		},
	)

	return &App{Service: service, close: closeStore}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// NewCompleter returns the configured language model adapter, or nil when
// the provider is "none". A nil completer makes every instruction fall back
// to the base rules.
func NewCompleter(cfg config.LLMConfig) (interpret.Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		slog.Info("instruction interpretation disabled", "provider", "none")
		return nil, nil
	case "groq":
		g, err := llm.NewGroq(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		slog.Info("instruction interpretation enabled", "provider", "groq")
		return g, nil
	case "ollama":
		slog.Info("instruction interpretation enabled", "provider", "ollama")
		return llm.NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// OpenStore opens the usage counter and job recorder for the configured
// driver. The memory driver keeps no history.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (quota.Counter, store.JobRecorder, func() error, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		slog.Info("using in-memory usage counter; usage resets on restart")
		return quota.NewMemoryCounter(), nil, func() error { return nil }, nil

	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("connected to sqlite store", "path", cfg.URL)
		return st, st, st.Close, nil

	case "postgres":
		st, err := postgres.Connect(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if u, err := url.Parse(cfg.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
		return st, st, st.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
