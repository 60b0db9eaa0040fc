package tool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ubitech/deskmate/pkg/errors"
	"github.com/ubitech/deskmate/pkg/logging"
)

// Registry manages all available tools
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *logging.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools, sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToOpenAIFunctions renders the catalog in OpenAI function calling format.
func (r *Registry) ToOpenAIFunctions() []map[string]any {
	tools := r.List()
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToOpenAIFunction(t))
	}
	return out
}

// Execute dispatches a tool call by name. Handler failures come back as an
// unsuccessful Result, not an error; the error return covers unknown tools
// and handler panics surfaced as errors.
func (r *Registry) Execute(name string, params map[string]any) (*Result, error) {
	if name == "" {
		return nil, errors.New(errors.ErrCodeToolNotFound, "tool name cannot be empty")
	}

	t, ok := r.Get(name)
	if !ok {
		return nil, errors.New(errors.ErrCodeToolNotFound, "tool not found: "+name)
	}

	callID := ulid.Make().String()
	start := time.Now()

	result, err := t.Execute(params)
	recordExecution(name, result, err)
	if err != nil {
		r.logger.Warn(logging.CategoryTool, "execute_failed", fmt.Sprintf("%s failed", name), map[string]any{
			"callId": callID,
			"error":  err.Error(),
		})
		return nil, errors.Wrap(err, errors.ErrCodeToolExecution, name+" execution failed")
	}

	r.logger.Debug(logging.CategoryTool, "executed", name, map[string]any{
		"callId":   callID,
		"success":  result.Success,
		"duration": time.Since(start).String(),
	})
	return result, nil
}
