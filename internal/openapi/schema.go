package openapi

import (
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the JSON type of a resolved schema node.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
)

// knownKinds maps OpenAPI type names onto the kinds a SchemaNode may carry.
var knownKinds = map[string]Kind{
	"object":  KindObject,
	"array":   KindArray,
	"string":  KindString,
	"number":  KindNumber,
	"integer": KindInteger,
	"boolean": KindBoolean,
}

// SchemaNode is a fully resolved type description. It never holds a reference:
// nodes are only built by the Resolver, after every reference below them resolved.
// Nodes may be shared between operations and must be treated as read-only.
type SchemaNode struct {
	Kind        Kind
	Description string
	Format      string
	Enum        []any
	Default     any

	// Properties keeps insertion order. Only set for KindObject.
	Properties *orderedmap.OrderedMap[string, *SchemaNode]
	// Required holds unique property names, in insertion order.
	Required []string

	// Items is the element schema for KindArray; nil when the document leaves it open.
	Items *SchemaNode
}

// String returns a plain string node, the fallback for schemas without a usable type.
func String() *SchemaNode {
	return &SchemaNode{Kind: KindString}
}

// IsObject reports whether the node is an object schema.
func (n *SchemaNode) IsObject() bool {
	return n != nil && n.Kind == KindObject
}

// Property returns the named property of an object node.
func (n *SchemaNode) Property(name string) (*SchemaNode, bool) {
	if n == nil || n.Properties == nil {
		return nil, false
	}
	return n.Properties.Get(name)
}

// PropertyNames returns property names in insertion order.
func (n *SchemaNode) PropertyNames() []string {
	if n == nil || n.Properties == nil {
		return nil
	}
	names := make([]string, 0, n.Properties.Len())
	for pair := n.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// IsRequired reports whether name is a required property of the node.
func (n *SchemaNode) IsRequired(name string) bool {
	if n == nil {
		return false
	}
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// WithDescription returns a shallow copy carrying desc, or n itself when desc is empty.
// The copy shares children with n, which is safe because nodes are never mutated.
func (n *SchemaNode) WithDescription(desc string) *SchemaNode {
	if desc == "" || n == nil {
		return n
	}
	cp := *n
	cp.Description = desc
	return &cp
}

// JSONSchema renders the node as a JSON Schema document fragment.
func (n *SchemaNode) JSONSchema() *jsonschema.Schema {
	if n == nil {
		return &jsonschema.Schema{Type: string(KindString)}
	}
	s := &jsonschema.Schema{
		Type:        string(n.Kind),
		Description: n.Description,
		Format:      n.Format,
		Enum:        n.Enum,
		Default:     n.Default,
	}
	switch n.Kind {
	case KindObject:
		s.Properties = jsonschema.NewProperties()
		if n.Properties != nil {
			for pair := n.Properties.Oldest(); pair != nil; pair = pair.Next() {
				s.Properties.Set(pair.Key, pair.Value.JSONSchema())
			}
		}
		if len(n.Required) > 0 {
			s.Required = append([]string(nil), n.Required...)
		}
	case KindArray:
		if n.Items != nil {
			s.Items = n.Items.JSONSchema()
		}
	}
	return s
}

// NameSet is an insertion-ordered set of names. Add is idempotent, so callers
// never need to check for duplicates. The zero value is ready to use.
type NameSet struct {
	names []string
	seen  map[string]struct{}
}

// Add inserts name and reports whether it was new.
func (s *NameSet) Add(name string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

// Has reports whether name is in the set.
func (s *NameSet) Has(name string) bool {
	_, ok := s.seen[name]
	return ok
}

// Len returns the number of names.
func (s *NameSet) Len() int {
	return len(s.names)
}

// Names returns a copy of the names in insertion order. Never nil.
func (s *NameSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
