package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/silfenpath/adk/errs"
)

// Registry holds an agent's tools by name (unique per agent, per spec
// §4.4) and their compiled validators.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]*Validator
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}, validators: map[string]*Validator{}}
}

// Add registers t, compiling its parameter schema. Returns an error if the
// name is already registered or the schema fails to compile.
func (r *Registry) Add(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	v, err := NewValidator(t)
	if err != nil {
		return err
	}
	r.tools[t.Name()] = t
	r.validators[t.Name()] = v
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, for building LLM function
// declarations.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Invoke validates args against name's compiled schema, then runs the tool.
// A validation failure never calls Run, preserving spec §4.4's contract.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, tc *Context) Result {
	r.mu.RLock()
	t, ok := r.tools[name]
	v := r.validators[name]
	r.mu.RUnlock()
	if !ok {
		return ErrorResult(errs.New(errs.KindNotFound, tc.InvocationID, "tool not found: "+name).Error())
	}
	if v != nil {
		if err := v.Validate(args); err != nil {
			return ErrorResult(err.Error())
		}
	}
	return t.Run(ctx, args, tc)
}
