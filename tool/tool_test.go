package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/llm"
)

type addTool struct{}

func (addTool) Name() string        { return "add" }
func (addTool) Description() string { return "adds two integers" }
func (addTool) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"a": {Type: "integer", Required: true},
		"b": {Type: "integer", Required: true},
	}
}
func (addTool) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)
	return OKResult(a + b)
}

func TestRegistryInvokeRunsOnValidArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(addTool{}))

	result := r.Invoke(context.Background(), "add", map[string]any{"a": float64(2), "b": float64(3)}, &Context{InvocationID: "i1"})
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, float64(5), result.Value)
}

func TestRegistryInvokeRejectsMissingRequiredArg(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(addTool{}))

	result := r.Invoke(context.Background(), "add", map[string]any{"a": float64(2)}, &Context{InvocationID: "i1"})
	assert.Equal(t, StatusError, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestRegistryInvokeUnknownToolReturnsError(t *testing.T) {
	r := NewRegistry()
	result := r.Invoke(context.Background(), "missing", nil, &Context{InvocationID: "i1"})
	assert.Equal(t, StatusError, result.Status)
}

func TestRegistryAddRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(addTool{}))
	err := r.Add(addTool{})
	assert.Error(t, err)
}
