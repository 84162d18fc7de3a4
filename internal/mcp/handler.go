package mcp

import (
	"fmt"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/openapi-mcp/internal/common"
)

// ServerInfo describes the bridged API to MCP clients.
type ServerInfo struct {
	Name    string
	Version string
	Title   string
	BaseURL string
}

// NewServer creates an MCP server with every generated tool registered.
func NewServer(info ServerInfo, b *Bridge) (*mcpserver.MCPServer, error) {
	s := mcpserver.NewMCPServer(
		info.Name,
		info.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(instructions(info, b.invoker.Table().Len())),
	)

	count, err := RegisterTools(s, b)
	if err != nil {
		return nil, err
	}

	b.logger.Info().
		Int("tools", count).
		Str("base_url", info.BaseURL).
		Str("api", info.Title).
		Msg("MCP server initialized")
	return s, nil
}

func instructions(info ServerInfo, tools int) string {
	title := info.Title
	if title == "" {
		title = "upstream"
	}
	return fmt.Sprintf("Tools for the %s API at %s. %d tools, one per operation. "+
		"Arguments are flat: path, query, header and cookie parameters plus top-level request body fields. "+
		"A failed call returns a JSON object with kind, message and detail. "+
		"Calling a tool name that is not listed is rejected with a JSON-RPC error instead.",
		title, info.BaseURL, tools)
}

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger
}

// NewHandler wraps s in a stateless streamable HTTP transport.
func NewHandler(s *mcpserver.MCPServer, logger *common.Logger) *Handler {
	return &Handler{
		streamable: mcpserver.NewStreamableHTTPServer(s, mcpserver.WithStateLess(true)),
		logger:     logger,
	}
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.streamable.ServeHTTP(w, r)
}
