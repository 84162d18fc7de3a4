package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/openapi-mcp/internal/catalog"
	"github.com/bobmcallan/openapi-mcp/internal/common"
	"github.com/bobmcallan/openapi-mcp/internal/invoke"
	"github.com/bobmcallan/openapi-mcp/internal/openapi"
)

const bridgeDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Meals", "version": "1.0.0"},
  "paths": {
    "/meals": {
      "get": {
        "summary": "List meals",
        "parameters": [{"name": "limit", "in": "query", "schema": {"type": "integer"}}]
      },
      "post": {
        "summary": "Create a meal",
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {
            "type": "object",
            "required": ["name"],
            "properties": {"name": {"type": "string", "description": "Meal name"}, "calories": {"type": "integer"}}
          }}}
        }
      }
    },
    "/meals/{id}": {
      "delete": {
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}]
      }
    },
    "/slow": {"get": {}}
  }
}`

type recorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (r *recorder) RecordToolCall(tool, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string][]string{}
	}
	r.outcomes[tool] = append(r.outcomes[tool], outcome)
}

// newBridgeServer builds an MCP server whose tools call upstream.
func newBridgeServer(t *testing.T, upstream http.Handler, timeout time.Duration) (*mcpserver.MCPServer, *recorder) {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	doc, err := openapi.Parse("meals.json", []byte(bridgeDoc))
	require.NoError(t, err)
	table, _ := catalog.NewToolTable(catalog.Build(doc, catalog.Filter{}))

	logger := common.NewSilentLogger()
	rec := &recorder{}
	inv := invoke.NewInvoker(table, invoke.NewExecutor(srv.URL, logger), logger)
	s, err := NewServer(ServerInfo{Name: "openapi-mcp", Version: "test", Title: "Meals", BaseURL: srv.URL}, NewBridge(inv, logger, rec, timeout))
	require.NoError(t, err)
	return s, rec
}

// listTools calls tools/list on the MCPServer and returns the tools.
func listTools(t *testing.T, s *mcpserver.MCPServer) []mcpgo.Tool {
	t.Helper()

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	result := s.HandleMessage(t.Context(), msg)

	resp, ok := result.(mcpgo.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T", result)
	}

	resultJSON, err := json.Marshal(resp.Result)
	require.NoError(t, err)

	var toolsResult mcpgo.ListToolsResult
	require.NoError(t, json.Unmarshal(resultJSON, &toolsResult))
	return toolsResult.Tools
}

// callTool calls a tool on the MCPServer and returns the result.
func callTool(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()

	paramsJSON, _ := json.Marshal(map[string]any{"name": name, "arguments": args})
	msg := json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":` + string(paramsJSON) + `}`)
	result := s.HandleMessage(t.Context(), msg)

	resp, ok := result.(mcpgo.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T", result)
	}

	resultJSON, err := json.Marshal(resp.Result)
	require.NoError(t, err)

	var toolResult mcpgo.CallToolResult
	require.NoError(t, json.Unmarshal(resultJSON, &toolResult))
	return &toolResult
}

// extractText extracts the text field from an MCP content block.
func extractText(t *testing.T, content mcpgo.Content) string {
	t.Helper()
	contentJSON, _ := json.Marshal(content)
	var tc struct {
		Text string `json:"text"`
	}
	json.Unmarshal(contentJSON, &tc)
	return tc.Text
}

func findTool(tools []mcpgo.Tool, name string) *mcpgo.Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

func TestListTools_OnePerOperation(t *testing.T) {
	s, _ := newBridgeServer(t, http.NotFoundHandler(), 0)
	tools := listTools(t, s)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_meals", "post_meals", "delete_meals_id", "get_slow"}, names)
}

func TestListTools_FlattenedSchema(t *testing.T) {
	s, _ := newBridgeServer(t, http.NotFoundHandler(), 0)

	create := findTool(listTools(t, s), "post_meals")
	require.NotNil(t, create)
	assert.Equal(t, "Create a meal", create.Description)
	assert.Equal(t, "object", create.InputSchema.Type)
	assert.Contains(t, create.InputSchema.Properties, "name")
	assert.Contains(t, create.InputSchema.Properties, "calories")
	assert.Equal(t, []string{"name"}, create.InputSchema.Required)

	name, ok := create.InputSchema.Properties["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Meal name", name["description"])
}

func TestListTools_Annotations(t *testing.T) {
	s, _ := newBridgeServer(t, http.NotFoundHandler(), 0)
	tools := listTools(t, s)

	list := findTool(tools, "get_meals")
	require.NotNil(t, list)
	require.NotNil(t, list.Annotations.ReadOnlyHint)
	assert.True(t, *list.Annotations.ReadOnlyHint)
	assert.Equal(t, "List meals", list.Annotations.Title)

	del := findTool(tools, "delete_meals_id")
	require.NotNil(t, del)
	assert.False(t, *del.Annotations.ReadOnlyHint)
	assert.True(t, *del.Annotations.DestructiveHint)
	assert.True(t, *del.Annotations.IdempotentHint)

	create := findTool(tools, "post_meals")
	require.NotNil(t, create)
	assert.False(t, *create.Annotations.IdempotentHint)
	assert.False(t, *create.Annotations.DestructiveHint)
}

func TestCallTool_Success(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/meals", r.URL.Path)
		assert.JSONEq(t, `{"name":"Soup","calories":120}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"m1","name":"Soup"}`))
	})
	s, rec := newBridgeServer(t, upstream, 0)

	result := callTool(t, s, "post_meals", map[string]any{"name": "Soup", "calories": 120})
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.JSONEq(t, `{"id":"m1","name":"Soup"}`, extractText(t, result.Content[0]))
	assert.Equal(t, map[string]any{"id": "m1", "name": "Soup"}, result.StructuredContent)
	assert.Equal(t, []string{"ok"}, rec.outcomes["post_meals"])
}

func TestCallTool_EmptyResponse(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meals/m%2F1", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	})
	s, _ := newBridgeServer(t, upstream, 0)

	result := callTool(t, s, "delete_meals_id", map[string]any{"id": "m/1"})
	assert.False(t, result.IsError)
	assert.Equal(t, "204 No Content", extractText(t, result.Content[0]))
}

func TestCallTool_MissingRequiredParameter(t *testing.T) {
	called := false
	s, rec := newBridgeServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }), 0)

	result := callTool(t, s, "delete_meals_id", map[string]any{})
	require.True(t, result.IsError)
	assert.False(t, called)

	var f Failure
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result.Content[0])), &f))
	assert.Equal(t, invoke.KindMissingRequiredParameter, f.Kind)
	assert.Equal(t, "id", f.Detail["parameter"])
	assert.Equal(t, "path", f.Detail["in"])
	assert.Equal(t, []string{invoke.KindMissingRequiredParameter}, rec.outcomes["delete_meals_id"])
}

func TestCallTool_UpstreamError(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"duplicate"}`))
	})
	s, _ := newBridgeServer(t, upstream, 0)

	result := callTool(t, s, "post_meals", map[string]any{"name": "Soup"})
	require.True(t, result.IsError)

	var f Failure
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result.Content[0])), &f))
	assert.Equal(t, invoke.KindUpstreamHTTPError, f.Kind)
	assert.Equal(t, float64(409), f.Detail["status"])
	assert.Equal(t, `{"error":"duplicate"}`, f.Detail["body"])
}

func TestCallTool_Timeout(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	s, _ := newBridgeServer(t, upstream, 50*time.Millisecond)

	result := callTool(t, s, "get_slow", nil)
	require.True(t, result.IsError)
	assert.Contains(t, extractText(t, result.Content[0]), invoke.KindUpstreamHTTPError)
}

func TestCallTool_UnknownToolRejected(t *testing.T) {
	s, _ := newBridgeServer(t, http.NotFoundHandler(), 0)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_meals_id","arguments":{}}}`)
	result := s.HandleMessage(t.Context(), msg)

	_, isResponse := result.(mcpgo.JSONRPCResponse)
	assert.False(t, isResponse, "unknown tools never reach an upstream call")
}

func TestFailureFor(t *testing.T) {
	f := failureFor(&invoke.OperationNotFoundError{Tool: "get_x"})
	assert.Equal(t, invoke.KindOperationNotFound, f.Kind)
	assert.Equal(t, "get_x", f.Detail["tool"])

	f = failureFor(&invoke.UpstreamHTTPError{Err: io.ErrUnexpectedEOF})
	assert.Equal(t, invoke.KindUpstreamHTTPError, f.Kind)
	assert.Equal(t, 0, f.Detail["status"])
	assert.NotContains(t, f.Detail, "body")

	f = failureFor(io.EOF)
	assert.Equal(t, invoke.KindInternalError, f.Kind)
	assert.Nil(t, f.Detail)
}

func TestInstructions(t *testing.T) {
	got := instructions(ServerInfo{BaseURL: "http://api"}, 3)
	assert.True(t, strings.HasPrefix(got, "Tools for the upstream API at http://api. 3 tools"))
	assert.Contains(t, got, "kind, message and detail")
	assert.Contains(t, got, "not listed is rejected with a JSON-RPC error")
}
