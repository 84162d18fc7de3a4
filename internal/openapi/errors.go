package openapi

import (
	"fmt"
	"strings"
)

// UnresolvedSchemaError reports a reference that does not name a component in the document.
type UnresolvedSchemaError struct {
	Ref string
}

func (e *UnresolvedSchemaError) Error() string {
	return fmt.Sprintf("unresolved reference %q", e.Ref)
}

// CyclicSchemaError reports a reference chain that revisits a schema still being resolved.
// Chain lists the schema names in visiting order, ending with the repeated name.
type CyclicSchemaError struct {
	Ref   string
	Chain []string
}

func (e *CyclicSchemaError) Error() string {
	return fmt.Sprintf("cyclic schema reference %q (%s)", e.Ref, strings.Join(e.Chain, " -> "))
}

// DocumentFetchError reports that the API description could not be retrieved.
// Status is zero when no HTTP response was received.
type DocumentFetchError struct {
	Location string
	Status   int
	Err      error
}

func (e *DocumentFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Location, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *DocumentFetchError) Unwrap() error { return e.Err }

// DocumentParseError reports a document that is not OpenAPI v3 JSON.
type DocumentParseError struct {
	Location string
	Reason   string
	Err      error
}

func (e *DocumentParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.Location, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DocumentParseError) Unwrap() error { return e.Err }
