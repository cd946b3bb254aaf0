package providers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"

	"github.com/silfenpath/adk/llm"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaConfig configures a local or self-hosted Ollama provider.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	NumCtx      int
	NumPredict  int
}

// NewOllama builds an llm.Provider backed by eino-ext's Ollama chat model,
// registered under the "ollama-" / local-model-name prefix.
func NewOllama(ctx context.Context, cfg OllamaConfig) (llm.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	modelConfig := &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
		Timeout: timeout,
	}
	opts := &einoollama.Options{}
	if cfg.Temperature != 0 {
		opts.Temperature = float32(cfg.Temperature)
	}
	if cfg.NumCtx != 0 {
		opts.NumCtx = cfg.NumCtx
	}
	if cfg.NumPredict != 0 {
		opts.NumPredict = cfg.NumPredict
	}
	modelConfig.Options = opts
	modelConfig.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &validatingTransport{inner: http.DefaultTransport},
	}
	chat, err := einoollama.NewChatModel(ctx, modelConfig)
	if err != nil {
		return nil, err
	}
	return NewAdapter("ollama", chat, llm.Features{Tools: true, Streaming: true}), nil
}

// validatingTransport detects non-JSON error bodies from a reverse proxy
// sitting in front of an Ollama backend, the way the teacher's transport
// catches "no available server" plain-text responses.
type validatingTransport struct {
	inner http.RoundTripper
}

func (t *validatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &unavailableError{body: strings.TrimSpace(string(body)), status: resp.StatusCode}
	}
	return resp, nil
}

type unavailableError struct {
	body   string
	status int
}

func (e *unavailableError) Error() string {
	return "ollama backend unavailable: status " + http.StatusText(e.status) + ": " + e.body
}
