// Package catalog turns a parsed OpenAPI document into an immutable table of
// tools: one OperationDescriptor per operation, a unique tool name for each,
// and a flattened input schema.
package catalog

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/bobmcallan/openapi-mcp/internal/openapi"
)

// Location is where a parameter travels in the HTTP request.
type Location string

const (
	InPath   Location = openapi3.ParameterInPath
	InQuery  Location = openapi3.ParameterInQuery
	InHeader Location = openapi3.ParameterInHeader
	InCookie Location = openapi3.ParameterInCookie
)

// ParameterSpec describes one named parameter of an operation.
// Path parameters are always required.
type ParameterSpec struct {
	Name        string
	In          Location
	Schema      *openapi.SchemaNode
	Required    bool
	Description string
}

// OperationDescriptor is one (method, path) operation with everything resolved.
// It is immutable once the catalog is built.
type OperationDescriptor struct {
	Method      string // upper case
	Path        string // verbatim template, placeholders kept
	OperationID string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool

	Parameters []ParameterSpec

	// Body is the resolved JSON request body schema, nil when the operation has none.
	Body         *openapi.SchemaNode
	BodyRequired bool
}

// Text returns the summary, else the description, else "METHOD /path".
func (op *OperationDescriptor) Text() string {
	if op.Summary != "" {
		return op.Summary
	}
	if op.Description != "" {
		return op.Description
	}
	return fmt.Sprintf("%s %s", op.Method, op.Path)
}

// Parameter returns the named parameter.
func (op *OperationDescriptor) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range op.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// String identifies the operation in logs.
func (op *OperationDescriptor) String() string {
	return op.Method + " " + op.Path
}
