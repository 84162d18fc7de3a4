package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// NameCollisionError records operations that derived the same tool name.
// It is resolved by suffixing and only ever reported to the operator.
type NameCollisionError struct {
	Name       string
	Operations []string
	Assigned   []string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("tool name %q derived by %d operations (%s); assigned %s",
		e.Name, len(e.Operations), strings.Join(e.Operations, ", "), strings.Join(e.Assigned, ", "))
}

// DeriveName computes the canonical tool name "{method}_{segments}" for an operation:
// /meals/{id} with GET gives "get_meals_id". Names are only ever derived in this
// direction; lookups go through the table built from them.
func DeriveName(method, path string) string {
	var parts []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		seg = strings.NewReplacer("{", "", "}", "").Replace(seg)
		if seg == "" {
			continue
		}
		parts = append(parts, sanitizeSegment(seg))
	}
	name := strings.ToLower(method)
	if len(parts) > 0 {
		name += "_" + strings.Join(parts, "_")
	}
	return name
}

func sanitizeSegment(seg string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, seg)
}

// assignNames returns one unique name per operation, index-aligned with ops.
// Every operation sharing a derived name is suffixed _1, _2, ... in declaration
// order; suffixed candidates already taken by another name are skipped.
func assignNames(ops []*OperationDescriptor) ([]string, []*NameCollisionError) {
	base := make([]string, len(ops))
	groups := make(map[string][]int)
	var order []string
	for i, op := range ops {
		base[i] = DeriveName(op.Method, op.Path)
		if _, ok := groups[base[i]]; !ok {
			order = append(order, base[i])
		}
		groups[base[i]] = append(groups[base[i]], i)
	}

	taken := make(map[string]bool, len(ops))
	for name, idx := range groups {
		if len(idx) == 1 {
			taken[name] = true
		}
	}

	names := make([]string, len(ops))
	var collisions []*NameCollisionError
	for _, name := range order {
		idx := groups[name]
		if len(idx) == 1 {
			names[idx[0]] = name
			continue
		}
		collision := &NameCollisionError{Name: name}
		n := 0
		for _, i := range idx {
			var candidate string
			for {
				n++
				candidate = name + "_" + strconv.Itoa(n)
				if !taken[candidate] {
					break
				}
			}
			taken[candidate] = true
			names[i] = candidate
			collision.Operations = append(collision.Operations, ops[i].String())
			collision.Assigned = append(collision.Assigned, candidate)
		}
		collisions = append(collisions, collision)
	}
	return names, collisions
}

// renameNote explains a disambiguated name in the tool description.
func renameNote(name, base string, op *OperationDescriptor, sharing int) string {
	return fmt.Sprintf("Tool name %s disambiguates %s from %d other operation(s) sharing %s.",
		name, op.String(), sharing-1, base)
}
