// Package invoke turns tool calls into upstream HTTP requests.
package invoke

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/bobmcallan/openapi-mcp/internal/catalog"
)

// Request is a routed tool call, ready to send.
type Request struct {
	Tool    string
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Cookies []*http.Cookie
	Body    any
	HasBody bool

	// Dropped lists arguments that had nowhere to go.
	Dropped []string
}

// Route looks up a tool and partitions its arguments by parameter location.
// Arguments that match no parameter form the JSON body.
func Route(table *catalog.ToolTable, name string, args map[string]any) (*Request, error) {
	td, ok := table.Lookup(name)
	if !ok {
		return nil, &OperationNotFoundError{Tool: name}
	}
	op := td.Operation

	req := &Request{
		Tool:   name,
		Method: op.Method,
		Path:   op.Path,
		Query:  url.Values{},
		Header: http.Header{},
	}

	work := maps.Clone(args)
	if work == nil {
		work = map[string]any{}
	}

	for _, p := range op.Parameters {
		v, present := work[p.Name]
		delete(work, p.Name)
		if !present || v == nil {
			if p.Required {
				return nil, &MissingRequiredParameterError{Tool: name, Parameter: p.Name, In: string(p.In)}
			}
			continue
		}

		switch p.In {
		case catalog.InPath:
			req.Path = strings.ReplaceAll(req.Path, "{"+p.Name+"}", url.PathEscape(renderJoined(v)))
		case catalog.InQuery:
			if items, ok := v.([]any); ok {
				for _, item := range items {
					req.Query.Add(p.Name, render(item))
				}
				continue
			}
			req.Query.Set(p.Name, render(v))
		case catalog.InHeader:
			req.Header.Set(p.Name, renderJoined(v))
		case catalog.InCookie:
			req.Cookies = append(req.Cookies, &http.Cookie{Name: p.Name, Value: cookieValue(renderJoined(v))})
		}
	}

	if td.Input.SyntheticBody {
		v, present := work[catalog.RequestBodyParameter]
		delete(work, catalog.RequestBodyParameter)
		if present && v != nil {
			req.Body = v
			req.HasBody = true
		} else if op.BodyRequired {
			return nil, &MissingRequiredParameterError{Tool: name, Parameter: catalog.RequestBodyParameter, In: "body"}
		}
		req.Dropped = sortedKeys(work)
		return req, nil
	}

	if len(work) > 0 {
		req.Body = work
		req.HasBody = true
	}
	return req, nil
}

// cookieValue percent-encodes values holding bytes net/http would strip from a cookie.
func cookieValue(s string) string {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b < 0x20 || b >= 0x7f || b == '"' || b == ';' || b == '\\' {
			return url.PathEscape(s)
		}
	}
	return s
}

// render formats a scalar argument: strings verbatim, numbers in their shortest
// form, booleans as true/false, anything else as JSON text.
func render(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case json.Number:
		return x.String()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// renderJoined renders arrays as comma-separated values.
func renderJoined(v any) string {
	items, ok := v.([]any)
	if !ok {
		return render(v)
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = render(item)
	}
	return strings.Join(parts, ",")
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
