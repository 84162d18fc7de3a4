package server

import (
	"encoding/json"
	"net/http"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// MCP endpoint (streamable HTTP, stateless)
	if s.app.MCPHandler != nil {
		mux.Handle("/mcp", s.app.MCPHandler)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.app.Metrics != nil {
		mux.Handle("GET /metrics", s.app.Metrics.Handler())
	}

	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// handleHealth reports the tool table summary and version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.app.Health()); err != nil {
		s.logger.Warn().Str("error", err.Error()).Msg("failed to write health response")
	}
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
