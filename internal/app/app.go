// Package app wires the document, tool table, invoker and MCP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/openapi-mcp/internal/catalog"
	"github.com/bobmcallan/openapi-mcp/internal/common"
	"github.com/bobmcallan/openapi-mcp/internal/config"
	"github.com/bobmcallan/openapi-mcp/internal/invoke"
	"github.com/bobmcallan/openapi-mcp/internal/mcp"
	"github.com/bobmcallan/openapi-mcp/internal/metrics"
	"github.com/bobmcallan/openapi-mcp/internal/openapi"
)

// ErrNoTools is returned when the document yields nothing to serve.
var ErrNoTools = errors.New("no tools could be generated")

// App holds all application components and dependencies.
type App struct {
	Config  *config.Config
	Logger  *common.Logger
	Metrics *metrics.Collector

	Document *openapi.Document
	Catalog  *catalog.Catalog
	Tools    *catalog.ToolTable
	BaseURL  string

	Invoker    *invoke.Invoker
	MCPServer  *mcpserver.MCPServer
	MCPHandler *mcp.Handler
}

// New loads the API description and builds everything needed to serve it.
// Document failures and an empty tool table are fatal; individual operations
// that fail to build are logged and left out.
func New(ctx context.Context, cfg *config.Config, logger *common.Logger) (*App, error) {
	loader := openapi.NewLoader(
		&http.Client{Timeout: cfg.UpstreamTimeout()},
		logger,
		cfg.Upstream.FetchRetries,
		cfg.FetchRetryDelay(),
	)
	doc, err := loader.Load(ctx, cfg.Upstream.DocURL)
	if err != nil {
		return nil, err
	}
	return NewFromDocument(cfg, logger, doc)
}

// NewFromDocument builds the application around an already parsed document.
func NewFromDocument(cfg *config.Config, logger *common.Logger, doc *openapi.Document) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.NewCollector(),
		Document: doc,
	}

	if err := a.initCatalog(); err != nil {
		return nil, err
	}

	a.BaseURL = cfg.Upstream.BaseURL
	if a.BaseURL == "" {
		a.BaseURL = doc.ServerURL()
		if a.BaseURL == "" {
			return nil, fmt.Errorf("no upstream base URL: set upstream.base_url or declare servers in %s", doc.Location)
		}
		logger.Info().Str("base_url", a.BaseURL).Msg("using base URL from document servers")
	}

	if err := a.initMCP(); err != nil {
		return nil, err
	}

	logger.Info().Msg("application initialization complete")
	return a, nil
}

func (a *App) initCatalog() error {
	filter := catalog.Filter{
		IncludeTags:       a.Config.Catalog.IncludeTags,
		ExcludeTags:       a.Config.Catalog.ExcludeTags,
		IncludeOperations: a.Config.Catalog.IncludeOperations,
		ExcludeOperations: a.Config.Catalog.ExcludeOperations,
	}
	a.Catalog = catalog.Build(a.Document, filter)

	for _, s := range a.Catalog.Skipped {
		a.Logger.Warn().Str("method", s.Method).Str("path", s.Path).Str("error", s.Err.Error()).Msg("operation skipped")
	}
	for _, n := range a.Catalog.Notes {
		a.Logger.Debug().Str("method", n.Method).Str("path", n.Path).Msg(n.Message)
	}

	table, collisions := catalog.NewToolTable(a.Catalog)
	for _, c := range collisions {
		a.Logger.Warn().Str("name", c.Name).Int("operations", len(c.Operations)).Str("error", c.Error()).Msg("tool name collision resolved")
	}
	a.Tools = table

	a.Metrics.SetCatalog(len(a.Catalog.Operations), len(a.Catalog.Skipped), a.Catalog.Filtered)
	a.Logger.Info().
		Int("tools", table.Len()).
		Int("skipped", len(a.Catalog.Skipped)).
		Int("filtered", a.Catalog.Filtered).
		Int("collisions", len(collisions)).
		Msg("tool table built")

	if table.Len() == 0 {
		switch {
		case len(a.Catalog.Skipped) > 0:
			return fmt.Errorf("%w: all %d operations were skipped", ErrNoTools, len(a.Catalog.Skipped))
		case a.Catalog.Filtered > 0:
			return fmt.Errorf("%w: all %d operations were filtered out", ErrNoTools, a.Catalog.Filtered)
		default:
			return fmt.Errorf("%w: document declares no operations", ErrNoTools)
		}
	}
	return nil
}

func (a *App) initMCP() error {
	executor := invoke.NewExecutor(a.BaseURL, a.Logger,
		invoke.WithHTTPClient(&http.Client{Timeout: a.Config.UpstreamTimeout()}),
		invoke.WithHeaders(a.Config.Upstream.Headers),
		invoke.WithRateLimit(a.Config.Upstream.RateLimit, a.Config.Upstream.Burst),
		invoke.WithObserver(a.Metrics),
	)
	a.Invoker = invoke.NewInvoker(a.Tools, executor, a.Logger)

	bridge := mcp.NewBridge(a.Invoker, a.Logger, a.Metrics, a.Config.CallTimeout())
	s, err := mcp.NewServer(mcp.ServerInfo{
		Name:    a.Config.Server.Name,
		Version: config.Version,
		Title:   a.Document.Title(),
		BaseURL: a.BaseURL,
	}, bridge)
	if err != nil {
		return err
	}
	a.MCPServer = s
	a.MCPHandler = mcp.NewHandler(s, a.Logger)
	return nil
}

// Health summarises the served API for the health endpoint.
type Health struct {
	Status   string             `json:"status"`
	API      string             `json:"api"`
	BaseURL  string             `json:"base_url"`
	Tools    int                `json:"tools"`
	Skipped  int                `json:"skipped"`
	Filtered int                `json:"filtered"`
	Version  config.VersionInfo `json:"version"`
}

// Health returns the current health summary.
func (a *App) Health() Health {
	return Health{
		Status:   "ok",
		API:      a.Document.Title(),
		BaseURL:  a.BaseURL,
		Tools:    a.Tools.Len(),
		Skipped:  len(a.Catalog.Skipped),
		Filtered: a.Catalog.Filtered,
		Version:  config.GetVersionInfo(),
	}
}

// ToolListing is one row of the -list dry run.
type ToolListing struct {
	Name        string               `json:"name"`
	Method      string               `json:"method"`
	Path        string               `json:"path"`
	Description string               `json:"description"`
	InputSchema *catalog.InputSchema `json:"inputSchema"`
}

// ListTools returns the generated tools in declaration order.
func (a *App) ListTools() []ToolListing {
	tools := a.Tools.Tools()
	out := make([]ToolListing, len(tools))
	for i, td := range tools {
		out[i] = ToolListing{
			Name:        td.Name,
			Method:      td.Operation.Method,
			Path:        td.Operation.Path,
			Description: td.Description,
			InputSchema: td.Input,
		}
	}
	return out
}
