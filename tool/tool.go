// Package tool turns plain Go functions into model-callable tool
// definitions. The function signature is reflected into a JSON schema
// the provider hands to the model; positional parameter names default
// to param0..paramN and can be renamed with the Parameters option.
package tool

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/deanmachines/foundry/pkg/reflectx"
	"github.com/deanmachines/foundry/pkg/stdx"
	"github.com/deanmachines/foundry/types"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a single tool: its model-facing name and
// description, the mapping from positional parameter slots to schema
// property names, and the Go function that implements it.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema reflects the tool's function signature into the name
// and JSON schema the provider sends to the model.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	return functionDefinitionJSON(&functionReflector, td)
}

func functionDefinitionJSON(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	val := reflect.ValueOf(f.Function)
	typ := val.Type()

	name := f.Name
	if name == "" && typ.Kind() == reflect.Func {
		if typ.Name() != "" {
			// named function types use the type name
			name = typ.String()
		} else if fn := runtime.FuncForPC(val.Pointer()); fn != nil {
			name = fn.Name()
			if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
				name = name[lastDot+1:]
			}
		} else {
			name = typ.String()
		}
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	if typ.Kind() == reflect.Func {
		numIn := typ.NumIn()
		startIdx := 0
		// skip the receiver for method values
		if numIn > 0 && typ.In(0).Kind() == reflect.Struct {
			startIdx = 1
		}

		var required []string
		for i := startIdx; i < numIn; i++ {
			paramType := typ.In(i)
			// runtime context parameters are injected by the executor,
			// the model never sees them
			if reflectx.IsRefinedType[types.RuntimeContext](paramType) {
				continue
			}

			paramName := fmt.Sprintf("param%d", i-startIdx)
			if f.Parameters != nil {
				if p, ok := f.Parameters[paramName]; ok {
					paramName = p
				}
			}

			propSchema := reflector.ReflectFromType(paramType)
			propSchema.Version = ""
			schema.Properties.Set(paramName, propSchema)
			required = append(required, paramName)
		}
		if len(required) > 0 {
			schema.Required = required
		}
	}

	return name, schema
}

// Option configures a Definition during construction.
type Option = opts.Option[Definition]

// Must is New but panics on error. Use it for package-level tool
// variables where a bad definition is a programming error.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// New builds a Definition from the provided function. When no Name
// option is given the function's reflected name is used.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Name sets the model-facing name of the tool.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the model-facing description of the tool.
var Description = opts.ForName[Definition, string]("Description")

// Parameters names the function's positional parameters in order. The
// i-th name replaces the generated "paramI" in the schema.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
