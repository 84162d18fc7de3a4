package catalog

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bobmcallan/openapi-mcp/internal/openapi"
)

// RequestBodyParameter names the single entry standing in for a request body
// that is not an object and so cannot be flattened field by field.
const RequestBodyParameter = "requestBody"

// InputSchema is a tool's flattened parameter list.
type InputSchema struct {
	properties *orderedmap.OrderedMap[string, *openapi.SchemaNode]
	required   []string

	// SyntheticBody is set when the whole request body travels as RequestBodyParameter.
	SyntheticBody bool
	// Shadowed lists body properties hidden by a location parameter of the same name.
	Shadowed []string
}

// Flatten builds the input schema of an operation: its location parameters first,
// then the top-level properties of an object body. Location parameters win over
// body properties of the same name.
func Flatten(op *OperationDescriptor) *InputSchema {
	in := &InputSchema{properties: orderedmap.New[string, *openapi.SchemaNode]()}
	var required openapi.NameSet

	for _, p := range op.Parameters {
		in.properties.Set(p.Name, p.Schema.WithDescription(p.Description))
		if p.Required {
			required.Add(p.Name)
		}
	}

	switch {
	case op.Body == nil:
	case op.Body.IsObject():
		for _, name := range op.Body.PropertyNames() {
			if _, taken := in.properties.Get(name); taken {
				in.Shadowed = append(in.Shadowed, name)
				continue
			}
			prop, _ := op.Body.Property(name)
			in.properties.Set(name, prop)
			if op.Body.IsRequired(name) {
				required.Add(name)
			}
		}
	default:
		if _, taken := in.properties.Get(RequestBodyParameter); taken {
			in.Shadowed = append(in.Shadowed, RequestBodyParameter)
			break
		}
		in.properties.Set(RequestBodyParameter, op.Body)
		in.SyntheticBody = true
		if op.BodyRequired {
			required.Add(RequestBodyParameter)
		}
	}

	in.required = required.Names()
	return in
}

// Empty reports whether the tool takes no parameters at all.
func (s *InputSchema) Empty() bool {
	return s.properties.Len() == 0
}

// Names returns parameter names in insertion order.
func (s *InputSchema) Names() []string {
	names := make([]string, 0, s.properties.Len())
	for pair := s.properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Property returns the schema of one parameter.
func (s *InputSchema) Property(name string) (*openapi.SchemaNode, bool) {
	return s.properties.Get(name)
}

// Required returns the unique required names in insertion order.
func (s *InputSchema) Required() []string {
	out := make([]string, len(s.required))
	copy(out, s.required)
	return out
}

type wireInputSchema struct {
	Type       string                                             `json:"type"`
	Properties *orderedmap.OrderedMap[string, *jsonschema.Schema] `json:"properties"`
	Required   []string                                           `json:"required"`
}

// MarshalJSON renders {"type":"object","properties":{...},"required":[...]}.
// required is always present, possibly empty.
func (s *InputSchema) MarshalJSON() ([]byte, error) {
	props := jsonschema.NewProperties()
	for pair := s.properties.Oldest(); pair != nil; pair = pair.Next() {
		props.Set(pair.Key, pair.Value.JSONSchema())
	}
	return json.Marshal(wireInputSchema{
		Type:       "object",
		Properties: props,
		Required:   s.Required(),
	})
}
