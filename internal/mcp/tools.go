package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers one MCP tool per table entry, all served by the bridge.
func RegisterTools(s *server.MCPServer, b *Bridge) (int, error) {
	tools := b.invoker.Table().Tools()
	for _, td := range tools {
		tool, err := BuildMCPTool(td)
		if err != nil {
			return 0, err
		}
		s.AddTool(tool, b.HandleToolCall)
	}
	return len(tools), nil
}
