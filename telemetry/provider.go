package telemetry

import "strings"

// providerPrefixes mirrors the model-name prefixes the llm package's
// Registry is wired with in llm/providers: each concrete adapter self-
// registers under its own prefix, so detecting the provider from a model
// name is the same prefix match the Registry itself performs.
var providerPrefixes = []struct {
	prefix   string
	provider string
}{
	{"claude-", "anthropic"},
	{"gemini-", "google"},
	{"gpt-", "openai"},
	{"o1-", "openai"},
	{"o3-", "openai"},
	{"ollama-", "ollama"},
}

// DetectProvider infers a provider name from a model string using the same
// prefix convention the LLM Registry resolves providers by. It returns
// "unknown" if no known prefix matches.
func DetectProvider(model string) string {
	for _, p := range providerPrefixes {
		if strings.HasPrefix(model, p.prefix) {
			return p.provider
		}
	}
	return "unknown"
}
