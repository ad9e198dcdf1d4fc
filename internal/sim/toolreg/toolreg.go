package toolreg

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"econbench.ai/internal/protocol"
)

// Result is what every tool execution returns. Tools never panic and
// never surface Go errors to the agent; failure is ok=false plus a code
// the agent can react to.
type Result struct {
	OK      bool           `json:"ok"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func OK(data map[string]any) Result {
	return Result{OK: true, Data: data}
}

func Fail(code, message string) Result {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	return Result{OK: false, Code: code, Message: message}
}

func Failf(code, format string, args ...any) Result {
	return Fail(code, fmt.Sprintf(format, args...))
}

// Input is a tool's decoded JSON input. Getters assume the registry has
// already validated the document against the tool's schema, so type
// mismatches only happen for optional absent fields.
type Input map[string]any

func (in Input) Str(key string) string {
	v, _ := in[key].(string)
	return v
}

func (in Input) Num(key string) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func (in Input) Int(key string) int { return int(in.Num(key)) }

func (in Input) Bool(key string) bool {
	v, _ := in[key].(bool)
	return v
}

func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// Tool binds a name to an input schema and a handler. The handler takes
// the world state explicitly; there is no ambient context.
type Tool[S any] struct {
	Name        string
	Description string
	Schema      string // JSON schema source for the input object
	Handler     func(s S, in Input) Result

	compiled *jsonschema.Schema
}

// Registry is the only mutation surface of a run's world state. Dispatch
// is called from the run's single writer goroutine; the registry itself
// is immutable after construction.
type Registry[S any] struct {
	tools map[string]*Tool[S]
	order []string
}

func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{tools: map[string]*Tool[S]{}}
}

func (r *Registry[S]) Register(t *Tool[S]) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("toolreg: empty tool name")
	}
	if t.Handler == nil {
		return fmt.Errorf("toolreg: %s: nil handler", t.Name)
	}
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("toolreg: duplicate tool %q", t.Name)
	}
	schema := t.Schema
	if schema == "" {
		schema = `{"type":"object","additionalProperties":false}`
	}
	compiled, err := jsonschema.CompileString(t.Name+".schema.json", schema)
	if err != nil {
		return fmt.Errorf("toolreg: %s: compile schema: %w", t.Name, err)
	}
	t.compiled = compiled
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

func (r *Registry[S]) MustRegister(tools ...*Tool[S]) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Dispatch validates the input and runs the handler. Validation failures
// reject the call before any state is touched.
func (r *Registry[S]) Dispatch(s S, name string, input map[string]any) Result {
	t := r.tools[name]
	if t == nil {
		return Failf(protocol.ErrNotFound, "unknown tool %q", name)
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := t.compiled.Validate(map[string]any(input)); err != nil {
		return Failf(protocol.ErrValidation, "bad input for %s: %v", name, compactSchemaErr(err))
	}
	return t.Handler(s, Input(input))
}

// Catalog lists tools in registration order for the WELCOME message.
func (r *Registry[S]) Catalog() []protocol.ToolInfo {
	out := make([]protocol.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schema := t.Schema
		if schema == "" {
			schema = `{"type":"object","additionalProperties":false}`
		}
		out = append(out, protocol.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: json.RawMessage(schema),
		})
	}
	return out
}

func compactSchemaErr(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return leaf.InstanceLocation + ": " + leaf.Message
		}
		return leaf.Message
	}
	return err.Error()
}
