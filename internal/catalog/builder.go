package catalog

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bobmcallan/openapi-mcp/internal/openapi"
)

// ignoredHeaders are header parameters OpenAPI says must be ignored;
// the transport controls them.
var ignoredHeaders = map[string]bool{
	"accept":        true,
	"content-type":  true,
	"authorization": true,
}

// Filter selects operations by operationId and tag. Exclusions win over inclusions.
type Filter struct {
	IncludeTags       []string
	ExcludeTags       []string
	IncludeOperations []string
	ExcludeOperations []string
}

// Allows reports whether an operation passes the filter.
func (f Filter) Allows(operationID string, tags []string) bool {
	if operationID != "" && slices.Contains(f.ExcludeOperations, operationID) {
		return false
	}
	for _, tag := range tags {
		if slices.Contains(f.ExcludeTags, tag) {
			return false
		}
	}

	if len(f.IncludeOperations) == 0 && len(f.IncludeTags) == 0 {
		return true
	}
	if operationID != "" && slices.Contains(f.IncludeOperations, operationID) {
		return true
	}
	for _, tag := range tags {
		if slices.Contains(f.IncludeTags, tag) {
			return true
		}
	}
	return false
}

// SkippedOperation records an operation left out of the catalog and why.
type SkippedOperation struct {
	Method string
	Path   string
	Err    error
}

// Note records a non-fatal adjustment made while building an operation.
type Note struct {
	Method  string
	Path    string
	Message string
}

// Catalog is the result of walking a document: the operations that built
// cleanly, in declaration order, plus what was skipped.
type Catalog struct {
	Operations []*OperationDescriptor
	Skipped    []SkippedOperation
	Notes      []Note
	Filtered   int
}

// Build walks every operation of the document. A failure in one operation is
// recorded in Skipped and never stops the others.
func Build(doc *openapi.Document, filter Filter) *Catalog {
	c := &Catalog{}
	resolver := doc.Resolver()

	for _, key := range doc.Operations() {
		item := doc.PathItem(key.Path)
		if item == nil {
			continue
		}
		if item.Ref != "" {
			c.Skipped = append(c.Skipped, SkippedOperation{
				Method: key.Method,
				Path:   key.Path,
				Err:    fmt.Errorf("path item: %w", &openapi.UnresolvedSchemaError{Ref: item.Ref}),
			})
			continue
		}
		op := item.GetOperation(key.Method)
		if op == nil {
			continue
		}
		if !filter.Allows(op.OperationID, op.Tags) {
			c.Filtered++
			continue
		}

		b := &operationBuilder{resolver: resolver, key: key}
		desc, err := b.build(item, op)
		c.Notes = append(c.Notes, b.notes...)
		if err != nil {
			c.Skipped = append(c.Skipped, SkippedOperation{Method: key.Method, Path: key.Path, Err: err})
			continue
		}
		c.Operations = append(c.Operations, desc)
	}
	return c
}

type paramKey struct {
	name string
	in   string
}

type operationBuilder struct {
	resolver *openapi.Resolver
	key      openapi.OperationKey
	notes    []Note
}

func (b *operationBuilder) note(format string, args ...any) {
	b.notes = append(b.notes, Note{
		Method:  b.key.Method,
		Path:    b.key.Path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *operationBuilder) build(item *openapi3.PathItem, op *openapi3.Operation) (*OperationDescriptor, error) {
	desc := &OperationDescriptor{
		Method:      b.key.Method,
		Path:        b.key.Path,
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Deprecated:  op.Deprecated,
	}

	params, err := b.parameters(item.Parameters, op.Parameters)
	if err != nil {
		return nil, err
	}
	desc.Parameters = params

	if op.RequestBody != nil {
		body, required, err := b.requestBody(op.RequestBody)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}
		desc.Body = body
		desc.BodyRequired = required
	}
	return desc, nil
}

// parameters merges path-item and operation parameters. An operation entry with the
// same name and location replaces the path-item entry in place. When one name is
// used in several locations a path parameter always wins, since the URL needs it;
// otherwise the first declared one does.
func (b *operationBuilder) parameters(shared, own openapi3.Parameters) ([]ParameterSpec, error) {
	merged := orderedmap.New[paramKey, *openapi3.Parameter]()
	pathNames := make(map[string]bool)
	for _, group := range []openapi3.Parameters{shared, own} {
		for _, ref := range group {
			p, err := b.resolver.Parameter(ref)
			if err != nil {
				return nil, fmt.Errorf("parameter: %w", err)
			}
			merged.Set(paramKey{name: p.Name, in: p.In}, p)
			if Location(p.In) == InPath {
				pathNames[p.Name] = true
			}
		}
	}

	specs := make([]ParameterSpec, 0, merged.Len())
	seen := make(map[string]Location, merged.Len())
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		p := pair.Value
		in := Location(p.In)
		switch in {
		case InPath, InQuery, InHeader, InCookie:
		default:
			b.note("parameter %q has unsupported location %q; ignored", p.Name, p.In)
			continue
		}
		if in == InHeader && ignoredHeaders[strings.ToLower(p.Name)] {
			b.note("header parameter %q is controlled by the transport; ignored", p.Name)
			continue
		}
		if in != InPath && pathNames[p.Name] {
			b.note("%s parameter %q shadowed by path parameter of the same name; ignored", in, p.Name)
			continue
		}
		if prev, dup := seen[p.Name]; dup {
			b.note("%s parameter %q shadowed by %s parameter of the same name; ignored", in, p.Name, prev)
			continue
		}

		schema, err := b.parameterSchema(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		seen[p.Name] = in
		specs = append(specs, ParameterSpec{
			Name:        p.Name,
			In:          in,
			Schema:      schema,
			Required:    p.Required || in == InPath,
			Description: p.Description,
		})
	}
	return specs, nil
}

func (b *operationBuilder) parameterSchema(p *openapi3.Parameter) (*openapi.SchemaNode, error) {
	if p.Schema != nil {
		return b.resolver.Node(p.Schema)
	}
	if mt, _ := jsonMediaType(p.Content); mt != nil && mt.Schema != nil {
		return b.resolver.Node(mt.Schema)
	}
	return openapi.String(), nil
}

func (b *operationBuilder) requestBody(ref *openapi3.RequestBodyRef) (*openapi.SchemaNode, bool, error) {
	rb, err := b.resolver.RequestBody(ref)
	if err != nil {
		return nil, false, err
	}
	mt, mediaType := jsonMediaType(rb.Content)
	if mt == nil {
		b.note("request body has no JSON media type; body ignored")
		return nil, false, nil
	}
	if mt.Schema == nil {
		// Any JSON object: unnamed arguments still travel in the body.
		return &openapi.SchemaNode{Kind: openapi.KindObject, Description: rb.Description}, rb.Required, nil
	}
	node, err := b.resolver.Node(mt.Schema)
	if err != nil {
		return nil, false, fmt.Errorf("%s schema: %w", mediaType, err)
	}
	if node.Description == "" {
		node = node.WithDescription(rb.Description)
	}
	return node, rb.Required, nil
}

// jsonMediaType picks application/json, else the first JSON-flavoured media type.
func jsonMediaType(content openapi3.Content) (*openapi3.MediaType, string) {
	if mt, ok := content["application/json"]; ok && mt != nil {
		return mt, "application/json"
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(k, ";", 2)[0]))
		if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
			if mt := content[k]; mt != nil {
				return mt, k
			}
		}
	}
	return nil, ""
}
