package openapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Document {
	t.Helper()
	d, err := Parse("test.json", []byte(doc))
	require.NoError(t, err)
	return d
}

const componentsDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Pets", "version": "2.1.0"},
  "paths": {},
  "components": {
    "schemas": {
      "Pet": {
        "type": "object",
        "description": "A pet",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "tag": {"$ref": "#/components/schemas/Tag"},
          "photos": {"type": "array", "items": {"type": "string", "format": "uri"}}
        }
      },
      "Tag": {"type": "object", "properties": {"label": {"type": "string"}}},
      "Node": {"type": "object", "properties": {"next": {"$ref": "#/components/schemas/Node"}}},
      "A": {"type": "object", "properties": {"b": {"$ref": "#/components/schemas/B"}}},
      "B": {"type": "object", "properties": {"a": {"$ref": "#/components/schemas/A"}}},
      "Dangling": {"type": "object", "properties": {"x": {"$ref": "#/components/schemas/Nowhere"}}},
      "Named": {
        "allOf": [
          {"$ref": "#/components/schemas/Tag"},
          {"type": "object", "required": ["id"], "properties": {"id": {"type": "integer"}}}
        ]
      },
      "Choice": {"description": "one of", "oneOf": [{"type": "integer"}, {"type": "string"}]},
      "Fallback": {"anyOf": [{"$ref": "#/components/schemas/Nowhere"}, {"type": "boolean"}]},
      "NoChoice": {"oneOf": [{"$ref": "#/components/schemas/Gone"}, {"$ref": "#/components/schemas/Nowhere"}]},
      "Nullable": {"type": ["null", "number"]},
      "Untyped": {"description": "anything"},
      "Status": {"type": "string", "enum": ["open", "closed"], "default": "open"},
      "a/b": {"type": "boolean"}
    }
  }
}`

func TestResolve_NestedReferences(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	pet, err := r.Resolve("#/components/schemas/Pet")
	require.NoError(t, err)

	assert.Equal(t, KindObject, pet.Kind)
	assert.Equal(t, "A pet", pet.Description)
	assert.Equal(t, []string{"name", "tag", "photos"}, pet.PropertyNames())
	assert.True(t, pet.IsRequired("name"))
	assert.False(t, pet.IsRequired("tag"))

	tag, ok := pet.Property("tag")
	require.True(t, ok)
	assert.Equal(t, KindObject, tag.Kind)
	assert.Equal(t, []string{"label"}, tag.PropertyNames())

	photos, _ := pet.Property("photos")
	assert.Equal(t, KindArray, photos.Kind)
	require.NotNil(t, photos.Items)
	assert.Equal(t, "uri", photos.Items.Format)
}

func TestResolve_Memoizes(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	first, err := r.Resolve("#/components/schemas/Tag")
	require.NoError(t, err)
	second, err := r.Resolve("#/components/schemas/Tag")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolve_SelfCycle(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	_, err := r.Resolve("#/components/schemas/Node")
	var cyc *CyclicSchemaError
	require.True(t, errors.As(err, &cyc), "expected CyclicSchemaError, got %v", err)
	assert.Equal(t, []string{"Node", "Node"}, cyc.Chain)
}

func TestResolve_MutualCycle(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	_, err := r.Resolve("#/components/schemas/A")
	var cyc *CyclicSchemaError
	require.True(t, errors.As(err, &cyc), "expected CyclicSchemaError, got %v", err)
	assert.Equal(t, []string{"A", "B", "A"}, cyc.Chain)
	assert.Contains(t, err.Error(), "A -> B -> A")

	// A failed chain leaves the resolver usable.
	_, err = r.Resolve("#/components/schemas/Tag")
	assert.NoError(t, err)
}

func TestResolve_Unresolved(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	tests := []string{
		"#/components/schemas/Missing",
		"#/definitions/Pet",
		"other.json#/components/schemas/Pet",
		"#/components/schemas/",
	}
	for _, ref := range tests {
		t.Run(ref, func(t *testing.T) {
			_, err := r.Resolve(ref)
			var unresolved *UnresolvedSchemaError
			require.True(t, errors.As(err, &unresolved), "expected UnresolvedSchemaError, got %v", err)
			assert.Equal(t, ref, unresolved.Ref)
		})
	}
}

func TestResolve_UnresolvedNested(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	_, err := r.Resolve("#/components/schemas/Dangling")
	var unresolved *UnresolvedSchemaError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "#/components/schemas/Nowhere", unresolved.Ref)
}

func TestResolve_AllOfMergesObjects(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	named, err := r.Resolve("#/components/schemas/Named")
	require.NoError(t, err)
	assert.Equal(t, KindObject, named.Kind)
	assert.Equal(t, []string{"label", "id"}, named.PropertyNames())
	assert.Equal(t, []string{"id"}, named.Required)
}

func TestResolve_Alternatives(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	choice, err := r.Resolve("#/components/schemas/Choice")
	require.NoError(t, err)
	assert.Equal(t, KindInteger, choice.Kind)
	assert.Equal(t, "one of", choice.Description)
}

func TestResolve_AlternativeSkipsUnresolvedBranch(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	fallback, err := r.Resolve("#/components/schemas/Fallback")
	require.NoError(t, err)
	assert.Equal(t, KindBoolean, fallback.Kind)

	_, err = r.Resolve("#/components/schemas/NoChoice")
	var unresolved *UnresolvedSchemaError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "#/components/schemas/Gone", unresolved.Ref)
}

func TestResolve_TypeFallbacks(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	nullable, err := r.Resolve("#/components/schemas/Nullable")
	require.NoError(t, err)
	assert.Equal(t, KindNumber, nullable.Kind)

	untyped, err := r.Resolve("#/components/schemas/Untyped")
	require.NoError(t, err)
	assert.Equal(t, KindString, untyped.Kind)
	assert.Equal(t, "anything", untyped.Description)

	status, err := r.Resolve("#/components/schemas/Status")
	require.NoError(t, err)
	assert.Equal(t, []any{"open", "closed"}, status.Enum)
	assert.Equal(t, "open", status.Default)
}

func TestResolve_EscapedName(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()

	node, err := r.Resolve("#/components/schemas/a~1b")
	require.NoError(t, err)
	assert.Equal(t, KindBoolean, node.Kind)
}

func TestResolve_NoComponents(t *testing.T) {
	r := mustParse(t, `{"openapi":"3.0.0","paths":{}}`).Resolver()

	_, err := r.Resolve("#/components/schemas/Pet")
	var unresolved *UnresolvedSchemaError
	assert.True(t, errors.As(err, &unresolved))
}

const orderedDoc = `{
  "openapi": "3.0.3",
  "paths": {
    "/pets": {
      "post": {
        "parameters": [
          {"name": "filter", "in": "query", "schema": {"type": "object", "properties": {"z": {"type": "string"}, "a": {"type": "string"}}}}
        ],
        "requestBody": {"content": {"application/json": {"schema": {
          "type": "object",
          "properties": {
            "zeta": {"type": "string"},
            "alpha": {"type": "object", "properties": {"y": {"type": "integer"}, "x": {"type": "integer"}}},
            "mid": {"type": "array", "items": {"type": "object", "properties": {"q": {"type": "string"}, "p": {"type": "string"}}}}
          }
        }}}}
      }
    }
  },
  "components": {
    "schemas": {
      "Owner": {
        "allOf": [
          {"type": "object", "properties": {"surname": {"type": "string"}, "given": {"type": "string"}}},
          {"type": "object", "properties": {"phone": {"type": "string"}, "email": {"type": "string"}}}
        ]
      }
    }
  }
}`

func TestResolve_DeclarationOrder(t *testing.T) {
	doc := mustParse(t, orderedDoc)
	r := doc.Resolver()
	op := doc.PathItem("/pets").Post

	body, err := r.Node(op.RequestBody.Value.Content["application/json"].Schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, body.PropertyNames())

	alpha, _ := body.Property("alpha")
	assert.Equal(t, []string{"y", "x"}, alpha.PropertyNames())
	mid, _ := body.Property("mid")
	require.NotNil(t, mid.Items)
	assert.Equal(t, []string{"q", "p"}, mid.Items.PropertyNames())

	filter, err := r.Node(op.Parameters[0].Value.Schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, filter.PropertyNames())

	owner, err := r.Resolve("#/components/schemas/Owner")
	require.NoError(t, err)
	assert.Equal(t, []string{"surname", "given", "phone", "email"}, owner.PropertyNames())

	keys := body.JSONSchema().Properties
	var rendered []string
	for pair := keys.Oldest(); pair != nil; pair = pair.Next() {
		rendered = append(rendered, pair.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, rendered)
}

func TestNewResolver_SortsWithoutRawOrder(t *testing.T) {
	r := NewResolver(mustParse(t, componentsDoc).Model)

	pet, err := r.Resolve("#/components/schemas/Pet")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "photos", "tag"}, pet.PropertyNames())
}

func TestNode_NilIsString(t *testing.T) {
	r := NewResolver(nil)

	node, err := r.Node(nil)
	require.NoError(t, err)
	assert.Equal(t, KindString, node.Kind)
}

func TestJSONSchema_RendersTree(t *testing.T) {
	r := mustParse(t, componentsDoc).Resolver()
	pet, err := r.Resolve("#/components/schemas/Pet")
	require.NoError(t, err)

	s := pet.JSONSchema()
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"name"}, s.Required)

	photos, ok := s.Properties.Get("photos")
	require.True(t, ok)
	assert.Equal(t, "array", photos.Type)
	require.NotNil(t, photos.Items)
	assert.Equal(t, "string", photos.Items.Type)
}

func TestNameSet(t *testing.T) {
	var s NameSet
	assert.True(t, s.Add("id"))
	assert.True(t, s.Add("name"))
	assert.False(t, s.Add("id"))
	assert.True(t, s.Has("name"))
	assert.False(t, s.Has("tag"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"id", "name"}, s.Names())

	var empty NameSet
	assert.NotNil(t, empty.Names())
}
