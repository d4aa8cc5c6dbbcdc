package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/taiagent/taiagent/internal/core"
)

// GenerateSchema reflects T into an inline JSON Schema suitable for tool parameters.
// Fields are described with `jsonschema_description` tags and marked required with
// `jsonschema:"required"`.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:                  true,
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

// funcTool is a Tool backed by a typed handler.
type funcTool[T any] struct {
	def     core.ToolDefinition
	handler func(ctx context.Context, args T) (any, error)
}

// Func builds a tool whose arguments decode into T. The handler's return value is
// serialized by the loop (see Serialize).
func Func[T any](name, description string, handler func(ctx context.Context, args T) (any, error)) core.Tool {
	return &funcTool[T]{
		def: core.ToolDefinition{
			Type: "function",
			Function: core.FunctionSpec{
				Name:        name,
				Description: description,
				Parameters:  GenerateSchema[T](),
			},
		},
		handler: handler,
	}
}

func (f *funcTool[T]) Name() string { return f.def.Function.Name }

func (f *funcTool[T]) Definition() core.ToolDefinition { return f.def }

func (f *funcTool[T]) Call(ctx context.Context, args map[string]any) (any, error) {
	var typed T
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%s: encode arguments: %w", f.Name(), err)
		}
		if err := json.Unmarshal(raw, &typed); err != nil {
			return nil, fmt.Errorf("%s: decode arguments: %w", f.Name(), err)
		}
	}
	return f.handler(ctx, typed)
}
