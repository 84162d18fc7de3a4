package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/openapi-mcp/internal/catalog"
)

// BuildMCPTool converts a ToolDescriptor into an mcp.Tool carrying the flattened
// input schema verbatim.
func BuildMCPTool(td *catalog.ToolDescriptor) (mcp.Tool, error) {
	schema, err := json.Marshal(td.Input)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %q: failed to render input schema: %w", td.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(td.Name, td.Description, schema)
	tool.Annotations = annotationsFor(td.Operation)
	return tool, nil
}

// annotationsFor derives behaviour hints from the HTTP method.
func annotationsFor(op *catalog.OperationDescriptor) mcp.ToolAnnotation {
	readOnly := false
	idempotent := false
	destructive := false
	switch op.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		readOnly = true
		idempotent = true
	case http.MethodPut:
		idempotent = true
		destructive = true
	case http.MethodDelete:
		idempotent = true
		destructive = true
	case http.MethodPatch:
		destructive = true
	}
	return mcp.ToolAnnotation{
		Title:           op.Summary,
		ReadOnlyHint:    mcp.ToBoolPtr(readOnly),
		DestructiveHint: mcp.ToBoolPtr(destructive),
		IdempotentHint:  mcp.ToBoolPtr(idempotent),
		OpenWorldHint:   mcp.ToBoolPtr(true),
	}
}
