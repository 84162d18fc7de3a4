package openapi

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/tidwall/gjson"
)

// httpMethods lists the operation keys a path item may carry.
var httpMethods = map[string]bool{
	"GET": true, "PUT": true, "POST": true, "DELETE": true,
	"OPTIONS": true, "HEAD": true, "PATCH": true, "TRACE": true,
}

// OperationKey identifies one operation by upper-case method and verbatim path template.
type OperationKey struct {
	Method string
	Path   string
}

// Document is a parsed OpenAPI v3 description.
// References inside Model are left unresolved; the Resolver handles them.
type Document struct {
	Location string
	Model    *openapi3.T

	operations []OperationKey
	order      propertyOrder
}

// Parse validates and decodes an OpenAPI v3 JSON document.
// location is only used for error messages and relative server URLs.
func Parse(location string, data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, &DocumentParseError{Location: location, Reason: "document is not valid JSON"}
	}

	version := gjson.GetBytes(data, "openapi")
	if !version.Exists() {
		if gjson.GetBytes(data, "swagger").Exists() {
			return nil, &DocumentParseError{Location: location, Reason: "Swagger 2.0 documents are not supported"}
		}
		return nil, &DocumentParseError{Location: location, Reason: "missing openapi version field"}
	}
	if !strings.HasPrefix(version.String(), "3.") {
		return nil, &DocumentParseError{Location: location, Reason: "unsupported OpenAPI version " + version.String()}
	}

	paths := gjson.GetBytes(data, "paths")
	if !paths.IsObject() {
		return nil, &DocumentParseError{Location: location, Reason: "document has no paths object"}
	}

	model := &openapi3.T{}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, &DocumentParseError{Location: location, Reason: "decode failed", Err: err}
	}

	return &Document{
		Location:   location,
		Model:      model,
		operations: declarationOrder(paths),
		order:      collectPropertyOrder(gjson.ParseBytes(data), model),
	}, nil
}

// declarationOrder walks the raw paths object, since the decoded model keeps paths in a map.
func declarationOrder(paths gjson.Result) []OperationKey {
	var keys []OperationKey
	seen := make(map[OperationKey]bool)
	paths.ForEach(func(path, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		item.ForEach(func(key, _ gjson.Result) bool {
			k := OperationKey{Method: strings.ToUpper(key.String()), Path: path.String()}
			if httpMethods[k.Method] && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
			return true
		})
		return true
	})
	return keys
}

// Resolver returns a schema resolver for the document. Object properties
// come out in the order the document declares them.
func (d *Document) Resolver() *Resolver {
	r := NewResolver(d.Model)
	r.order = d.order
	return r
}

// Operations returns every (method, path) pair in document declaration order.
func (d *Document) Operations() []OperationKey {
	out := make([]OperationKey, len(d.operations))
	copy(out, d.operations)
	return out
}

// PathItem returns the path item declared for a template.
func (d *Document) PathItem(path string) *openapi3.PathItem {
	if d.Model == nil || d.Model.Paths == nil {
		return nil
	}
	return d.Model.Paths.Value(path)
}

// Title returns the API title, or "" when the info block is missing.
func (d *Document) Title() string {
	if d.Model == nil || d.Model.Info == nil {
		return ""
	}
	return d.Model.Info.Title
}

// Version returns the API version from the info block.
func (d *Document) Version() string {
	if d.Model == nil || d.Model.Info == nil {
		return ""
	}
	return d.Model.Info.Version
}

// ServerURL returns the first declared server URL with variables replaced by their
// defaults. Relative URLs are resolved against the document location when it is a URL.
func (d *Document) ServerURL() string {
	if d.Model == nil {
		return ""
	}
	for _, srv := range d.Model.Servers {
		if srv == nil || srv.URL == "" {
			continue
		}
		raw := srv.URL
		for name, v := range srv.Variables {
			if v != nil {
				raw = strings.ReplaceAll(raw, "{"+name+"}", v.Default)
			}
		}
		return strings.TrimSuffix(d.absolute(raw), "/")
	}
	return ""
}

func (d *Document) absolute(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	base, err := url.Parse(d.Location)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return raw
	}
	return base.ResolveReference(ref).String()
}
