// Package mcp implements spec §6's Tool MCP contract from both directions:
// a Server exposes a tool.Registry over MCP for external clients, and a
// Client turns a remote MCP server's advertised tools into local
// tool.Tool values a Registry can hold.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/silfenpath/adk/tool"
)

// ContextFactory builds the tool.Context a bridged MCP call runs under.
// A remote MCP client carries no session of its own, so the server must
// synthesize one per call (or per connection) for the bridged Invoke.
type ContextFactory func(ctx context.Context, toolName string) *tool.Context

// NewServer exposes registry's tools over MCP. filter, if non-empty,
// restricts exposure to the single named tool, mirroring the filtering
// the teacher's own MCP server supports.
func NewServer(name, version string, registry *tool.Registry, newContext ContextFactory, filter string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil)

	for _, t := range registry.All() {
		if filter != "" && t.Name() != filter {
			continue
		}
		mcpTool := toMCPTool(t)
		toolName := t.Name()

		server.AddTool(mcpTool, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult(err.Error()), nil
				}
			}
			tc := newContext(ctx, toolName)
			result := registry.Invoke(ctx, toolName, args, tc)
			if result.Status == tool.StatusError {
				slog.Debug("mcp tool error", "tool", toolName, "error", result.ErrorMessage)
				return errorResult(result.ErrorMessage), nil
			}
			payload, err := json.Marshal(result.Value)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(payload)}}}, nil
		})
		slog.Debug("mcp tool registered", "tool", toolName)
	}
	return server
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{IsError: true, Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}}}
}

// toMCPTool converts a tool.Tool's declaration into an MCP tool with a
// JSON-Schema input shape.
func toMCPTool(t tool.Tool) *mcpsdk.Tool {
	params := t.Parameters()
	props := make(map[string]any, len(params))
	var required []string
	for name, p := range params {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return &mcpsdk.Tool{Name: t.Name(), Description: t.Description(), InputSchema: schema}
}
