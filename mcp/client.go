package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/tool"
)

// Client is the remote-toolset side of spec §6's Tool MCP contract: it
// turns one remote MCP server's advertised tools into tool.Tool values a
// Registry can hold, and terminates the underlying transport on Close.
type Client struct {
	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
}

// Dial connects to an MCP server over transport and returns a Client
// bound to that session.
func Dial(ctx context.Context, name, version string, transport mcpsdk.Transport) (*Client, error) {
	c := mcpsdk.NewClient(&mcpsdk.Implementation{Name: name, Version: version}, nil)
	session, err := c.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}
	return &Client{client: c, session: session}, nil
}

// Tools implements the Tool MCP contract's getTools(): it lists the
// remote server's tools and wraps each as a tool.Tool that forwards its
// Run to a CallTool request over this session.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	res, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	out := make([]tool.Tool, 0, len(res.Tools))
	for _, spec := range res.Tools {
		out = append(out, &remoteTool{session: c.session, spec: spec})
	}
	return out, nil
}

// Close implements the Tool MCP contract's close(): it terminates the
// underlying transport.
func (c *Client) Close() error {
	return c.session.Close()
}

// remoteTool adapts one MCP-advertised tool into the local tool.Tool
// contract, so it can sit in a tool.Registry indistinguishably from a
// native tool.
type remoteTool struct {
	session *mcpsdk.ClientSession
	spec    *mcpsdk.Tool
}

func (rt *remoteTool) Name() string        { return rt.spec.Name }
func (rt *remoteTool) Description() string { return rt.spec.Description }

func (rt *remoteTool) Parameters() map[string]llm.Parameter {
	return schemaToParameters(rt.spec.InputSchema)
}

func (rt *remoteTool) Run(ctx context.Context, args map[string]any, tc *tool.Context) tool.Result {
	res, err := rt.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: rt.spec.Name, Arguments: args})
	if err != nil {
		return tool.ErrorResult(err.Error())
	}
	text := contentText(res.Content)
	if res.IsError {
		return tool.ErrorResult(text)
	}
	return tool.OKResult(text)
}

func contentText(content []mcpsdk.Content) string {
	var b strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// schemaToParameters reads the bare minimum of a JSON-Schema object
// needed to populate this package's Parameter shape: each property's
// declared type/description/enum/default, and which are required. A
// schema shape it doesn't recognize yields no parameters, which
// degrades to unvalidated passthrough rather than failing the tool.
func schemaToParameters(schema any) map[string]llm.Parameter {
	obj, ok := schema.(map[string]any)
	if !ok {
		return nil
	}
	props, _ := obj["properties"].(map[string]any)
	required := map[string]bool{}
	if reqList, ok := obj["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}
	params := make(map[string]llm.Parameter, len(props))
	for name, raw := range props {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		param := llm.Parameter{Required: required[name]}
		if t, ok := p["type"].(string); ok {
			param.Type = t
		}
		if d, ok := p["description"].(string); ok {
			param.Description = d
		}
		if enumList, ok := p["enum"].([]any); ok {
			for _, e := range enumList {
				if s, ok := e.(string); ok {
					param.Enum = append(param.Enum, s)
				}
			}
		}
		if d, ok := p["default"]; ok {
			param.Default = d
		}
		params[name] = param
	}
	return params
}
