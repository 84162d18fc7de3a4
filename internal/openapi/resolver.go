package openapi

import (
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	schemaRefPrefix      = "#/components/schemas/"
	parameterRefPrefix   = "#/components/parameters/"
	requestBodyRefPrefix = "#/components/requestBodies/"
)

// Resolver turns schema references into SchemaNodes against one document.
// Completed names are memoized, so a Resolver is built once per catalog and
// used from a single goroutine.
type Resolver struct {
	components *openapi3.Components
	order      propertyOrder
	done       map[string]*SchemaNode
	active     map[string]bool
	stack      []string
}

// NewResolver creates a resolver over the document's components. Without the
// raw document it has no key order, so object properties are sorted by name;
// Document.Resolver keeps declaration order.
func NewResolver(doc *openapi3.T) *Resolver {
	r := &Resolver{
		done:   make(map[string]*SchemaNode),
		active: make(map[string]bool),
	}
	if doc != nil {
		r.components = doc.Components
	}
	return r
}

// Resolve returns the schema named by a "#/components/schemas/<Name>" reference,
// with every nested reference resolved.
func (r *Resolver) Resolve(ref string) (*SchemaNode, error) {
	name, ok := componentName(ref, schemaRefPrefix)
	if !ok {
		return nil, &UnresolvedSchemaError{Ref: ref}
	}
	if node, ok := r.done[name]; ok {
		return node, nil
	}
	if r.active[name] {
		return nil, &CyclicSchemaError{Ref: ref, Chain: r.cycleFrom(name)}
	}

	var target *openapi3.SchemaRef
	if r.components != nil {
		target = r.components.Schemas[name]
	}
	if target == nil {
		return nil, &UnresolvedSchemaError{Ref: ref}
	}

	r.active[name] = true
	r.stack = append(r.stack, name)
	defer func() {
		delete(r.active, name)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	node, err := r.Node(target)
	if err != nil {
		return nil, err
	}
	r.done[name] = node
	return node, nil
}

// Node resolves a schema that is either a reference or an inline definition.
func (r *Resolver) Node(ref *openapi3.SchemaRef) (*SchemaNode, error) {
	if ref == nil {
		return String(), nil
	}
	if ref.Ref != "" {
		return r.Resolve(ref.Ref)
	}
	return r.convert(ref.Value)
}

// Parameter dereferences a parameter, following "#/components/parameters/<Name>" links.
func (r *Resolver) Parameter(ref *openapi3.ParameterRef) (*openapi3.Parameter, error) {
	seen := map[string]bool{}
	for ref != nil && ref.Ref != "" {
		name, ok := componentName(ref.Ref, parameterRefPrefix)
		if !ok || seen[name] || r.components == nil {
			return nil, &UnresolvedSchemaError{Ref: ref.Ref}
		}
		seen[name] = true
		next := r.components.Parameters[name]
		if next == nil {
			return nil, &UnresolvedSchemaError{Ref: ref.Ref}
		}
		ref = next
	}
	if ref == nil || ref.Value == nil {
		return nil, &UnresolvedSchemaError{Ref: "<empty parameter>"}
	}
	return ref.Value, nil
}

// RequestBody dereferences a request body, following "#/components/requestBodies/<Name>" links.
func (r *Resolver) RequestBody(ref *openapi3.RequestBodyRef) (*openapi3.RequestBody, error) {
	seen := map[string]bool{}
	for ref != nil && ref.Ref != "" {
		name, ok := componentName(ref.Ref, requestBodyRefPrefix)
		if !ok || seen[name] || r.components == nil {
			return nil, &UnresolvedSchemaError{Ref: ref.Ref}
		}
		seen[name] = true
		next := r.components.RequestBodies[name]
		if next == nil {
			return nil, &UnresolvedSchemaError{Ref: ref.Ref}
		}
		ref = next
	}
	if ref == nil || ref.Value == nil {
		return nil, &UnresolvedSchemaError{Ref: "<empty request body>"}
	}
	return ref.Value, nil
}

func (r *Resolver) cycleFrom(name string) []string {
	start := 0
	for i, n := range r.stack {
		if n == name {
			start = i
			break
		}
	}
	chain := append([]string(nil), r.stack[start:]...)
	return append(chain, name)
}

func (r *Resolver) convert(s *openapi3.Schema) (*SchemaNode, error) {
	if s == nil {
		return String(), nil
	}
	node := &SchemaNode{
		Kind:        kindOf(s),
		Description: s.Description,
		Format:      s.Format,
		Enum:        s.Enum,
		Default:     s.Default,
	}

	if node.Kind == "" {
		switch {
		case len(s.Properties) > 0:
			node.Kind = KindObject
		case len(s.AllOf) > 0:
			return r.composed(s, node)
		case s.Items != nil:
			node.Kind = KindArray
		case len(s.OneOf) > 0:
			return r.alternative(s.OneOf, node)
		case len(s.AnyOf) > 0:
			return r.alternative(s.AnyOf, node)
		default:
			node.Kind = KindString
		}
	}

	switch node.Kind {
	case KindObject:
		if err := r.fillObject(s, node); err != nil {
			return nil, err
		}
	case KindArray:
		if s.Items != nil {
			items, err := r.Node(s.Items)
			if err != nil {
				return nil, err
			}
			node.Items = items
		}
	}
	return node, nil
}

// composed handles an untyped allOf. Object members merge into one object;
// otherwise the first member stands in, carrying the outer description.
func (r *Resolver) composed(s *openapi3.Schema, node *SchemaNode) (*SchemaNode, error) {
	var first *SchemaNode
	for _, member := range s.AllOf {
		m, err := r.Node(member)
		if err != nil {
			return nil, err
		}
		if m.IsObject() {
			node.Kind = KindObject
			if err := r.fillObject(s, node); err != nil {
				return nil, err
			}
			return node, nil
		}
		if first == nil {
			first = m
		}
	}
	return first.WithDescription(s.Description), nil
}

// alternative stands in the first oneOf/anyOf branch that resolves. When none
// does, the first branch's error is returned.
func (r *Resolver) alternative(alts openapi3.SchemaRefs, node *SchemaNode) (*SchemaNode, error) {
	var firstErr error
	for _, alt := range alts {
		m, err := r.Node(alt)
		if err == nil {
			return m.WithDescription(node.Description), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (r *Resolver) fillObject(s *openapi3.Schema, node *SchemaNode) error {
	props := orderedmap.New[string, *SchemaNode]()
	var required NameSet

	for _, member := range s.AllOf {
		m, err := r.Node(member)
		if err != nil {
			return err
		}
		if !m.IsObject() {
			continue
		}
		for _, name := range m.PropertyNames() {
			child, _ := m.Property(name)
			props.Set(name, child)
		}
		for _, name := range m.Required {
			required.Add(name)
		}
		if node.Description == "" {
			node.Description = m.Description
		}
	}

	for _, name := range r.propertyNames(s) {
		child, err := r.Node(s.Properties[name])
		if err != nil {
			return err
		}
		props.Set(name, child)
	}
	for _, name := range s.Required {
		required.Add(name)
	}

	node.Properties = props
	node.Required = required.Names()
	return nil
}

// propertyNames lists the schema's properties in declaration order when the
// raw key order is known. Anything the order misses follows, sorted by name.
func (r *Resolver) propertyNames(s *openapi3.Schema) []string {
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range r.order[s] {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// kindOf returns the first non-null declared type, or "" when the schema is untyped.
// Types outside the supported set fall back to string.
func kindOf(s *openapi3.Schema) Kind {
	if s.Type == nil {
		return ""
	}
	for _, t := range *s.Type {
		if t == "null" {
			continue
		}
		if k, ok := knownKinds[t]; ok {
			return k
		}
		return KindString
	}
	return ""
}

// componentName extracts the component name from a local JSON pointer reference.
func componentName(ref, prefix string) (string, bool) {
	name, ok := strings.CutPrefix(ref, prefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	if strings.Contains(name, "%") {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	name = strings.ReplaceAll(name, "~1", "/")
	name = strings.ReplaceAll(name, "~0", "~")
	return name, true
}
