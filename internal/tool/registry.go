package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/agnivade/levenshtein"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/overseer/internal/logging"
)

// ErrUnknownTool is returned by Execute for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidInput is returned by Execute when input fails schema validation.
var ErrInvalidInput = errors.New("invalid tool input")

// Registry manages tool registration and lookup. Tools keep their
// registration order.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]compiledSchema
	order   []string
	log     zerolog.Logger
}

type compiledSchema struct {
	resolved *jsonschema.Resolved
	err      error
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]compiledSchema),
		log:     logging.Component("tool"),
	}
}

// Register adds a tool to the registry, replacing any tool with the same ID.
// A tool whose schema does not resolve is kept, but every call to it fails.
func (r *Registry) Register(tool Tool) {
	rs, err := compileSchema(tool.Parameters())
	if err != nil {
		r.log.Error().Err(err).Str("tool", tool.ID()).Msg("invalid tool schema")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[tool.ID()] = compiledSchema{resolved: rs, err: err}
	if _, ok := r.tools[tool.ID()]; !ok {
		r.order = append(r.order, tool.ID())
	}
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order))
	for _, id := range r.order {
		tools = append(tools, r.tools[id])
	}
	return tools
}

// IDs returns all tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	tools := r.List()
	out := make([]einotool.BaseTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.EinoTool())
	}
	return out
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	tools := r.List()
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, toolInfo(t))
	}
	return infos
}

// Execute validates input and runs the named tool. The returned output is
// always suitable to hand back to the model: on failure it is
// {"error": reason} and the error is returned alongside it.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		err := fmt.Errorf("%w %q", ErrUnknownTool, name)
		if suggestion := r.closest(name); suggestion != "" {
			err = fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownTool, name, suggestion)
		}
		return errorOutput(err), err
	}

	r.mu.RLock()
	compiled := r.schemas[name]
	r.mu.RUnlock()
	if compiled.err != nil {
		err := fmt.Errorf("%w: tool %s has an invalid schema: %v", ErrInvalidInput, name, compiled.err)
		return errorOutput(err), err
	}
	if _, err := validateInput(compiled.resolved, input); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidInput, err)
		return errorOutput(err), err
	}

	result, err := t.Execute(ctx, input)
	if err != nil {
		r.log.Debug().Err(err).Str("tool", name).Msg("tool failed")
		return errorOutput(err), err
	}
	if result == nil {
		return "", nil
	}
	return result.Output, nil
}

// closest returns the registered name nearest to name, if any is close enough.
func (r *Registry) closest(name string) string {
	best, bestDist := "", -1
	for _, id := range r.IDs() {
		d := levenshtein.ComputeDistance(name, id)
		if bestDist < 0 || d < bestDist {
			best, bestDist = id, d
		}
	}
	if bestDist < 0 || bestDist > len(name)/2+1 {
		return ""
	}
	return best
}

func errorOutput(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
