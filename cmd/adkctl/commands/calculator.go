package commands

import (
	"context"
	"fmt"

	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/tool"
)

// calculatorTool is a minimal arithmetic tool that gives the demo agent
// something concrete to call instead of reasoning about arithmetic itself.
type calculatorTool struct{}

func newCalculatorTool() tool.Tool { return calculatorTool{} }

func (calculatorTool) Name() string { return "calculator" }

func (calculatorTool) Description() string {
	return "Evaluates a basic arithmetic operation (add, sub, mul, div) over two numbers."
}

func (calculatorTool) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"operation": {Type: "string", Required: true, Enum: []string{"add", "sub", "mul", "div"}},
		"a":         {Type: "number", Required: true},
		"b":         {Type: "number", Required: true},
	}
}

func (calculatorTool) Run(_ context.Context, args map[string]any, _ *tool.Context) tool.Result {
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)
	op, _ := args["operation"].(string)

	switch op {
	case "add":
		return tool.OKResult(a + b)
	case "sub":
		return tool.OKResult(a - b)
	case "mul":
		return tool.OKResult(a * b)
	case "div":
		if b == 0 {
			return tool.ErrorResult("division by zero")
		}
		return tool.OKResult(a / b)
	default:
		return tool.ErrorResult(fmt.Sprintf("unknown operation %q", op))
	}
}
