package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/llm"
	"github.com/JonMunkholm/csvclean/internal/quota"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	return cfg
}

// ----------------------------------------------------------------------------
// NewCompleter
// ----------------------------------------------------------------------------

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantNil bool
		wantErr bool
		check   func(t *testing.T, c any)
	}{
		{name: "none", cfg: config.LLMConfig{Provider: "none"}, wantNil: true},
		{name: "empty", cfg: config.LLMConfig{}, wantNil: true},
		{
			name: "groq",
			cfg:  config.LLMConfig{Provider: "groq", APIKey: "k"},
			check: func(t *testing.T, c any) {
				if _, ok := c.(*llm.Groq); !ok {
					t.Errorf("completer = %T, want *llm.Groq", c)
				}
			},
		},
		{name: "groq without key", cfg: config.LLMConfig{Provider: "groq"}, wantErr: true},
		{
			name: "ollama",
			cfg:  config.LLMConfig{Provider: "Ollama"},
			check: func(t *testing.T, c any) {
				if _, ok := c.(*llm.Ollama); !ok {
					t.Errorf("completer = %T, want *llm.Ollama", c)
				}
			},
		},
		{name: "unknown", cfg: config.LLMConfig{Provider: "gpt"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompleter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (c == nil) != tt.wantNil {
				t.Fatalf("completer = %v, wantNil %v", c, tt.wantNil)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// New
// ----------------------------------------------------------------------------

func TestNew_SQLiteStoreKeepsHistory(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"STORE_DRIVER": "sqlite",
		"STORE_URL":    filepath.Join(t.TempDir(), "csvclean.db"),
	})

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	caller := core.Caller{Identity: "account:a1", Tier: quota.TierPro}
	body := "name,city\nAda,london\nAda,london\n"
	if _, err := a.Service.Clean(context.Background(), caller, core.CleanRequest{
		FileName: "people.csv",
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	}); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	jobs, err := a.Service.History(context.Background(), caller)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].FileName != "people.csv" {
		t.Errorf("jobs = %+v, want one people.csv job", jobs)
	}
}

func TestNew_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	policy := "tiers:\n  anonymous:\n    cleanings_per_period: 1\n    max_file_size_mb: 1\n    ai_allowed: false\n"
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), testConfig(t, map[string]string{"QUOTA_POLICY_FILE": path}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	info, err := a.Service.Usage(context.Background(), core.Caller{Identity: "anon:x", Tier: quota.TierAnonymous, Anonymous: true})
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if info.Limit != 1 || info.AIAllowed {
		t.Errorf("usage = %+v, want limit 1 without AI", info)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing policy file", map[string]string{"QUOTA_POLICY_FILE": "/nonexistent/tiers.yaml"}},
		{"groq without key", map[string]string{"LLM_PROVIDER": "groq"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadFrom(func(key string) string { return tt.env[key] })
			if err != nil {
				// Validation caught it first.
				return
			}
			if _, err := New(context.Background(), cfg); err == nil {
				t.Error("New succeeded, want error")
			}
		})
	}
}
