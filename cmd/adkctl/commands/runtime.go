package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	einoollama "github.com/cloudwego/eino-ext/components/embedding/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/artifact"
	"github.com/silfenpath/adk/compaction"
	"github.com/silfenpath/adk/config"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/llm/providers"
	"github.com/silfenpath/adk/memory"
	"github.com/silfenpath/adk/runner"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/telemetry"
	"github.com/silfenpath/adk/tool"
)

// runtime bundles the pieces buildRuntime wires up, so subcommands can
// reach whichever of them they need without re-deriving the config.
type runtime struct {
	cfg       *config.Config
	sessions  session.Service
	artifacts artifact.Service
	providers *llm.Registry
	telemetry *telemetry.Bus
	runner    *runner.Runner
}

// buildRuntime loads cfgPath and wires an in-process Runner from it: one
// LLM provider per configured model, a store backend per Session/Artifact
// driver, a calculator demo tool, and the Compaction Engine and Telemetry
// Bus every agent runs under.
func buildRuntime(ctx context.Context, cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	registry := llm.NewRegistry()
	for name, pc := range cfg.Models.Providers {
		provider, prefix, err := newProvider(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		registry.Register(prefix, provider)
	}

	sessions, err := newSessionService(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("session service: %w", err)
	}
	artifacts, err := newArtifactService(cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("artifact service: %w", err)
	}

	tools := tool.NewRegistry()
	if err := tools.Add(newCalculatorTool()); err != nil {
		return nil, fmt.Errorf("register tool: %w", err)
	}
	if err := tools.Add(tool.NewLoadArtifacts()); err != nil {
		return nil, fmt.Errorf("register tool: %w", err)
	}

	root := agent.NewLlmAgent("assistant", "general-purpose adkctl demo agent")
	root.Model = cfg.Models.Default
	root.Instruction = "You are a terse, helpful assistant. Use tools when they would answer the question more reliably than reasoning alone."
	root.Tools = tools
	if cfg.Compaction.IsEnabled() {
		root.Compaction = &agent.CompactionConfig{
			Interval:    cfg.Compaction.WindowMessages,
			OverlapSize: cfg.Compaction.OverlapMessages,
		}
	}

	bus := telemetry.NewBus("adkctl")

	var searchMemory func(ctx context.Context, appName, userID, query string, limit int) ([]tool.MemoryHit, error)
	if cfg.Memory.IsEnabled() {
		memSvc, err := newMemoryService(ctx, cfg.Memory, registry, cfg.Models.Default)
		if err != nil {
			return nil, fmt.Errorf("memory service: %w", err)
		}
		searchMemory = memSvc.Search
		if err := tools.Add(memory.NewPreloadMemoryTool(memSvc, 5)); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	r, err := runner.New(runner.Config{
		Root:            root,
		SessionService:  sessions,
		ArtifactService: artifacts,
		Providers:       registry,
		Compaction:      compaction.New(registry),
		Telemetry:       bus,
		SearchMemory:    searchMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	return &runtime{cfg: cfg, sessions: sessions, artifacts: artifacts, providers: registry, telemetry: bus, runner: r}, nil
}

// newMemoryService wires the Memory Subsystem's embedding backend (eino-ext's
// openai/ollama embedders, bridged via memory.NewEinoEmbeddingProvider) onto
// a chromem-go-backed VectorStorage, with an LLM-backed SummaryProvider that
// asks defaultModel to condense a session's events into recallable facts.
func newMemoryService(ctx context.Context, cfg config.MemoryConfig, registry *llm.Registry, defaultModel string) (*memory.Service, error) {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	storage, err := memory.NewVectorStorage(cfg.Dir, memory.NewEinoEmbeddingProvider(embedder))
	if err != nil {
		return nil, fmt.Errorf("open vector storage: %w", err)
	}

	summarizer := memory.SummaryFunc(func(ctx context.Context, events []string) (memory.MemoryContent, error) {
		provider, ok := registry.Resolve(defaultModel)
		if !ok {
			return memory.MemoryContent{}, fmt.Errorf("no provider registered for model %q", defaultModel)
		}
		req := llm.Request{
			Model:             defaultModel,
			SystemInstruction: "Summarize the following conversation into a short narrative summary and a list of standalone facts worth recalling later. Respond with the summary only, one fact per line after a blank line.",
			Contents:          []event.Content{{Role: event.RoleUser, Parts: []event.Part{event.TextPart(strings.Join(events, "\n"))}}},
		}
		ch, err := provider.Generate(ctx, req)
		if err != nil {
			return memory.MemoryContent{}, err
		}
		var sb strings.Builder
		for resp := range ch {
			if resp.ErrorCode != "" {
				return memory.MemoryContent{}, fmt.Errorf("summarize: %s", resp.ErrorMessage)
			}
			if resp.Content != nil {
				for _, p := range resp.Content.Parts {
					sb.WriteString(p.Text)
				}
			}
		}
		parts := strings.SplitN(sb.String(), "\n\n", 2)
		content := memory.MemoryContent{Summary: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			for _, line := range strings.Split(parts[1], "\n") {
				if line = strings.TrimSpace(line); line != "" {
					content.KeyFacts = append(content.KeyFacts, line)
				}
			}
		}
		return content, nil
	})

	return memory.New(memory.Config{Storage: storage, Summarizer: summarizer}), nil
}

// newEmbedder builds an eino embedding.Embedder for the configured driver,
// the way the teacher's internal/memory/embedder.go does. Supported
// drivers: "openai", "ollama".
func newEmbedder(ctx context.Context, cfg config.MemoryConfig) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.Driver) {
	case "openai":
		apiKey := strings.TrimSpace(cfg.Auth.APIKey)
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai embedding: API key not configured (set memory.auth.api_key or OPENAI_API_KEY)")
		}
		ecfg := &einoopenai.EmbeddingConfig{APIKey: apiKey, Model: cfg.Model}
		if cfg.BaseURL != "" {
			ecfg.BaseURL = cfg.BaseURL
		}
		return einoopenai.NewEmbedder(ctx, ecfg)
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return einoollama.NewEmbedder(ctx, &einoollama.EmbeddingConfig{BaseURL: baseURL, Model: cfg.Model})
	default:
		return nil, fmt.Errorf("unsupported embedding driver %q (supported: openai, ollama)", cfg.Driver)
	}
}

// newProvider builds the llm.Provider for one configured model, returning
// the prefix it should be registered under.
func newProvider(ctx context.Context, pc config.ProviderConfig) (llm.Provider, string, error) {
	switch pc.Driver {
	case "claude":
		p, err := providers.NewClaude(ctx, providers.ClaudeConfig{
			APIKey: pc.Auth.APIKey, Model: pc.Model, BaseURL: pc.BaseURL,
			MaxTokens: pc.MaxTokens, Timeout: pc.Timeout.Duration(),
		})
		return p, "claude-", err
	case "gemini":
		p, err := providers.NewGemini(ctx, providers.GeminiConfig{APIKey: pc.Auth.APIKey, Model: pc.Model})
		return p, "gemini-", err
	case "openai":
		p, err := providers.NewOpenAI(ctx, providers.OpenAIConfig{
			APIKey: pc.Auth.APIKey, Model: pc.Model, BaseURL: pc.BaseURL,
			MaxTokens: pc.MaxTokens, Timeout: pc.Timeout.Duration(),
		})
		return p, "gpt-", err
	case "ollama":
		p, err := providers.NewOllama(ctx, providers.OllamaConfig{BaseURL: pc.BaseURL, Model: pc.Model, Timeout: pc.Timeout.Duration()})
		return p, "ollama-", err
	default:
		return nil, "", fmt.Errorf("unknown model driver %q", pc.Driver)
	}
}

func newSessionService(sc config.SessionConfig) (session.Service, error) {
	switch sc.Driver {
	case "", "memory":
		return session.NewInMemoryService(), nil
	case "sqlite":
		return session.OpenSQLService(context.Background(), sc.DSN)
	default:
		return nil, fmt.Errorf("unknown session driver %q", sc.Driver)
	}
}

func newArtifactService(ac config.ArtifactConfig) (artifact.Service, error) {
	switch ac.Driver {
	case "", "memory":
		return artifact.NewInMemoryService(), nil
	case "file":
		return artifact.NewFileService(ac.DSN)
	default:
		return nil, fmt.Errorf("unknown artifact driver %q", ac.Driver)
	}
}
