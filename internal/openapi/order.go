package openapi

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/tidwall/gjson"
)

// propertyOrder maps each decoded schema onto the key order of its raw
// "properties" object. The decoded model keeps properties in a Go map.
type propertyOrder map[*openapi3.Schema][]string

// collectPropertyOrder walks the raw document alongside the decoded model,
// covering every place the catalog reads schemas from.
func collectPropertyOrder(root gjson.Result, model *openapi3.T) propertyOrder {
	o := make(propertyOrder)
	if model == nil {
		return o
	}

	if c := model.Components; c != nil {
		raw := root.Get("components")
		raw.Get("schemas").ForEach(func(name, schema gjson.Result) bool {
			o.schema(schema, c.Schemas[name.String()])
			return true
		})
		raw.Get("parameters").ForEach(func(name, param gjson.Result) bool {
			o.parameter(param, c.Parameters[name.String()])
			return true
		})
		raw.Get("requestBodies").ForEach(func(name, body gjson.Result) bool {
			o.requestBody(body, c.RequestBodies[name.String()])
			return true
		})
	}

	if model.Paths == nil {
		return o
	}
	root.Get("paths").ForEach(func(path, item gjson.Result) bool {
		pi := model.Paths.Value(path.String())
		if pi == nil || !item.IsObject() {
			return true
		}
		o.parameters(item.Get("parameters"), pi.Parameters)
		item.ForEach(func(key, raw gjson.Result) bool {
			method := strings.ToUpper(key.String())
			if !httpMethods[method] {
				return true
			}
			if op := pi.GetOperation(method); op != nil {
				o.parameters(raw.Get("parameters"), op.Parameters)
				o.requestBody(raw.Get("requestBody"), op.RequestBody)
			}
			return true
		})
		return true
	})
	return o
}

func (o propertyOrder) parameters(raw gjson.Result, params openapi3.Parameters) {
	for i, p := range raw.Array() {
		if i >= len(params) {
			return
		}
		o.parameter(p, params[i])
	}
}

func (o propertyOrder) parameter(raw gjson.Result, ref *openapi3.ParameterRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	o.schema(raw.Get("schema"), ref.Value.Schema)
	o.content(raw.Get("content"), ref.Value.Content)
}

func (o propertyOrder) requestBody(raw gjson.Result, ref *openapi3.RequestBodyRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil {
		return
	}
	o.content(raw.Get("content"), ref.Value.Content)
}

func (o propertyOrder) content(raw gjson.Result, content openapi3.Content) {
	raw.ForEach(func(mediaType, media gjson.Result) bool {
		if mt := content[mediaType.String()]; mt != nil {
			o.schema(media.Get("schema"), mt.Schema)
		}
		return true
	})
}

func (o propertyOrder) schema(raw gjson.Result, ref *openapi3.SchemaRef) {
	if ref == nil || ref.Ref != "" || ref.Value == nil || !raw.IsObject() {
		return
	}
	s := ref.Value

	var names []string
	raw.Get("properties").ForEach(func(name, prop gjson.Result) bool {
		names = append(names, name.String())
		o.schema(prop, s.Properties[name.String()])
		return true
	})
	if len(names) > 0 {
		o[s] = names
	}

	o.schema(raw.Get("items"), s.Items)
	o.members(raw.Get("allOf"), s.AllOf)
	o.members(raw.Get("oneOf"), s.OneOf)
	o.members(raw.Get("anyOf"), s.AnyOf)
}

func (o propertyOrder) members(raw gjson.Result, refs openapi3.SchemaRefs) {
	for i, member := range raw.Array() {
		if i >= len(refs) {
			return
		}
		o.schema(member, refs[i])
	}
}
