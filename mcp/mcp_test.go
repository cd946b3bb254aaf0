package mcp

import (
	"context"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/tool"
)

type addTool struct{}

func (addTool) Name() string        { return "add" }
func (addTool) Description() string { return "adds two numbers" }
func (addTool) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"a": {Type: "number", Required: true},
		"b": {Type: "number", Required: true},
	}
}
func (addTool) Run(ctx context.Context, args map[string]any, tc *tool.Context) tool.Result {
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)
	return tool.OKResult(a + b)
}

type failTool struct{}

func (failTool) Name() string                         { return "boom" }
func (failTool) Description() string                  { return "always fails" }
func (failTool) Parameters() map[string]llm.Parameter { return nil }
func (failTool) Run(context.Context, map[string]any, *tool.Context) tool.Result {
	return tool.ErrorResult("kaboom")
}

func testContextFactory(ctx context.Context, toolName string) *tool.Context {
	return &tool.Context{AppName: "mcp-test", UserID: "bridge", Session: &session.Session{ID: "mcp-bridge"}}
}

// newLinkedPair builds a Server over registry and a connected Client
// talking to it through an in-process transport pair, the same harness
// shape the pack's own MCP client tests use.
func newLinkedPair(t *testing.T, registry *tool.Registry, filter string) *Client {
	t.Helper()
	server := NewServer("adk-test", "0.1.0", registry, testContextFactory, filter)

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	go func() { _ = server.Run(context.Background(), serverTransport) }()

	client, err := Dial(context.Background(), "adk-test-client", "0.1.0", clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServerExposesRegisteredToolsOverMCP(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(addTool{}))

	client := newLinkedPair(t, reg, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "add", tools[0].Name())
}

func TestServerFilterRestrictsExposure(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(addTool{}))
	require.NoError(t, reg.Add(failTool{}))

	client := newLinkedPair(t, reg, "add")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "add", tools[0].Name())
}

func TestRemoteToolRunRoundTrips(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(addTool{}))

	client := newLinkedPair(t, reg, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	result := tools[0].Run(ctx, map[string]any{"a": float64(2), "b": float64(3)}, nil)
	assert.Equal(t, tool.StatusOK, result.Status)
	assert.Equal(t, "5", result.Value)
}

func TestRemoteToolRunSurfacesToolError(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(failTool{}))

	client := newLinkedPair(t, reg, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	result := tools[0].Run(ctx, map[string]any{}, nil)
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Equal(t, "kaboom", result.ErrorMessage)
}

func TestRemoteToolParametersReflectRegisteredSchema(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(addTool{}))

	client := newLinkedPair(t, reg, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	params := tools[0].Parameters()
	require.Contains(t, params, "a")
	assert.True(t, params["a"].Required)
	assert.Equal(t, "number", params["a"].Type)
}

func TestSchemaToParametersRejectsUnknownShape(t *testing.T) {
	assert.Nil(t, schemaToParameters("not a schema"))
}
