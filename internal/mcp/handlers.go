package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/openapi-mcp/internal/common"
	"github.com/bobmcallan/openapi-mcp/internal/invoke"
)

// CallRecorder counts tool calls by outcome.
type CallRecorder interface {
	RecordToolCall(tool, outcome string)
}

// Failure is the structured payload of a failed tool call.
type Failure struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Bridge adapts MCP tool calls onto the invoker.
type Bridge struct {
	invoker  *invoke.Invoker
	logger   *common.Logger
	recorder CallRecorder
	timeout  time.Duration
}

// NewBridge creates a bridge. A zero timeout leaves calls bounded only by the
// caller's context. recorder may be nil.
func NewBridge(invoker *invoke.Invoker, logger *common.Logger, recorder CallRecorder, timeout time.Duration) *Bridge {
	return &Bridge{invoker: invoker, logger: logger, recorder: recorder, timeout: timeout}
}

// HandleToolCall is the single handler shared by every generated tool. It dispatches
// on the tool name through the table index.
func (b *Bridge) HandleToolCall(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := r.Params.Name
	logger := b.logger.WithCorrelationId(uuid.NewString())

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := b.invoker.Invoke(ctx, name, r.GetArguments())
	duration := time.Since(start)
	if err != nil {
		f := failureFor(err)
		b.record(name, f.Kind)
		logger.Warn().Str("tool", name).Str("kind", f.Kind).Dur("duration", duration).Str("error", err.Error()).Msg("tool call failed")
		return failureResult(f), nil
	}

	b.record(name, "ok")
	logger.Info().Str("tool", name).Int("status", res.Status).Dur("duration", duration).Msg("tool call completed")
	return successResult(res), nil
}

func (b *Bridge) record(tool, outcome string) {
	if b.recorder != nil {
		b.recorder.RecordToolCall(tool, outcome)
	}
}

// failureFor maps an invocation error onto its caller-facing shape.
func failureFor(err error) Failure {
	f := Failure{Kind: invoke.Kind(err), Message: err.Error()}

	var notFound *invoke.OperationNotFoundError
	var missing *invoke.MissingRequiredParameterError
	var upstream *invoke.UpstreamHTTPError
	switch {
	case errors.As(err, &notFound):
		f.Detail = map[string]any{"tool": notFound.Tool}
	case errors.As(err, &missing):
		f.Detail = map[string]any{"tool": missing.Tool, "parameter": missing.Parameter, "in": missing.In}
	case errors.As(err, &upstream):
		f.Detail = map[string]any{"status": upstream.Status}
		if upstream.Body != "" {
			f.Detail["body"] = upstream.Body
		}
	}
	return f
}

// failureResult creates an MCP error result carrying the failure as text and structured content.
func failureResult(f Failure) *mcp.CallToolResult {
	text, err := json.Marshal(f)
	if err != nil {
		text = []byte(f.Message)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(string(text))},
		StructuredContent: f,
		IsError:           true,
	}
}

// successResult returns the upstream body as text, plus the decoded object when there is one.
func successResult(res *invoke.Result) *mcp.CallToolResult {
	text := string(res.Body)
	if len(res.Body) == 0 {
		text = fmt.Sprintf("%d %s", res.Status, http.StatusText(res.Status))
	}
	out := &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
	if obj, ok := res.JSON.(map[string]any); ok {
		out.StructuredContent = obj
	}
	return out
}
