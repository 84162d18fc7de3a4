package catalog

import "strings"

// ToolDescriptor is the caller-facing view of one operation.
type ToolDescriptor struct {
	Name        string
	Description string
	Input       *InputSchema
	Operation   *OperationDescriptor
}

// ToolTable maps tool names to their descriptors and operations. It is built once
// and read concurrently without locking.
type ToolTable struct {
	tools  []*ToolDescriptor
	byName map[string]*ToolDescriptor
}

// NewToolTable names and flattens every catalog operation. The collisions that had
// to be disambiguated are returned for reporting.
func NewToolTable(c *Catalog) (*ToolTable, []*NameCollisionError) {
	names, collisions := assignNames(c.Operations)

	sharing := make(map[string]int)
	for _, col := range collisions {
		sharing[col.Name] = len(col.Operations)
	}

	t := &ToolTable{
		tools:  make([]*ToolDescriptor, 0, len(c.Operations)),
		byName: make(map[string]*ToolDescriptor, len(c.Operations)),
	}
	for i, op := range c.Operations {
		td := &ToolDescriptor{
			Name:        names[i],
			Description: describe(names[i], op, sharing),
			Input:       Flatten(op),
			Operation:   op,
		}
		t.tools = append(t.tools, td)
		t.byName[td.Name] = td
	}
	return t, collisions
}

func describe(name string, op *OperationDescriptor, sharing map[string]int) string {
	parts := []string{op.Text()}
	if op.Deprecated {
		parts = append([]string{"[deprecated]"}, parts...)
	}
	base := DeriveName(op.Method, op.Path)
	if n, ok := sharing[base]; ok {
		parts = append(parts, renameNote(name, base, op, n))
	}
	return strings.Join(parts, " ")
}

// Lookup returns the tool registered under name.
func (t *ToolTable) Lookup(name string) (*ToolDescriptor, bool) {
	td, ok := t.byName[name]
	return td, ok
}

// Operation returns the operation behind a tool name.
func (t *ToolTable) Operation(name string) (*OperationDescriptor, bool) {
	td, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return td.Operation, true
}

// Tools returns every tool in document declaration order.
func (t *ToolTable) Tools() []*ToolDescriptor {
	out := make([]*ToolDescriptor, len(t.tools))
	copy(out, t.tools)
	return out
}

// Len returns the number of tools.
func (t *ToolTable) Len() int {
	return len(t.tools)
}
