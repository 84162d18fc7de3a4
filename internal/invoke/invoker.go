package invoke

import (
	"context"
	"strings"

	"github.com/bobmcallan/openapi-mcp/internal/catalog"
	"github.com/bobmcallan/openapi-mcp/internal/common"
)

// Invoker routes a tool call against the table and executes it.
type Invoker struct {
	table    *catalog.ToolTable
	executor *Executor
	logger   *common.Logger
}

// NewInvoker creates an invoker. The table must not change afterwards.
func NewInvoker(table *catalog.ToolTable, executor *Executor, logger *common.Logger) *Invoker {
	return &Invoker{table: table, executor: executor, logger: logger}
}

// Table returns the tool table the invoker dispatches against.
func (i *Invoker) Table() *catalog.ToolTable {
	return i.table
}

// Invoke calls the operation behind tool name with args.
func (i *Invoker) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	req, err := Route(i.table, name, args)
	if err != nil {
		return nil, err
	}
	if len(req.Dropped) > 0 {
		i.logger.Warn().Str("tool", name).Str("arguments", strings.Join(req.Dropped, ",")).Msg("ignoring arguments with no matching parameter")
	}
	return i.executor.Execute(ctx, req)
}
