package invoke

import (
	"errors"
	"fmt"
)

// Failure kinds reported to callers.
const (
	KindOperationNotFound        = "operation_not_found"
	KindMissingRequiredParameter = "missing_required_parameter"
	KindUpstreamHTTPError        = "upstream_http_error"
	KindInternalError            = "internal_error"
)

// OperationNotFoundError is returned for a tool name that is not in the table.
type OperationNotFoundError struct {
	Tool string
}

func (e *OperationNotFoundError) Error() string {
	return fmt.Sprintf("no operation registered for tool %q", e.Tool)
}

// MissingRequiredParameterError is returned when a required parameter has no value.
type MissingRequiredParameterError struct {
	Tool      string
	Parameter string
	In        string
}

func (e *MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("tool %q: required %s parameter %q is missing", e.Tool, e.In, e.Parameter)
}

// UpstreamHTTPError carries a non-2xx response or a transport failure.
// Status is 0 when no response was received.
type UpstreamHTTPError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamHTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	if e.Body == "" {
		if e.Err != nil {
			return fmt.Sprintf("upstream returned %d: %v", e.Status, e.Err)
		}
		return fmt.Sprintf("upstream returned %d", e.Status)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, truncate(e.Body, 512))
}

func (e *UpstreamHTTPError) Unwrap() error { return e.Err }

// Kind maps an invocation error onto its failure kind.
func Kind(err error) string {
	var notFound *OperationNotFoundError
	var missing *MissingRequiredParameterError
	var upstream *UpstreamHTTPError
	switch {
	case errors.As(err, &notFound):
		return KindOperationNotFound
	case errors.As(err, &missing):
		return KindMissingRequiredParameter
	case errors.As(err, &upstream):
		return KindUpstreamHTTPError
	default:
		return KindInternalError
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
