package relay

import (
	"fmt"
	"strings"
)

// Issue is one validation failure, addressed by its JSON path.
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// ValidationError is returned when a request body does not have the shape a
// relay endpoint expects. Handlers map it to 400.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "validation error"
	}
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, strings.Join(is.Path, ".")+": "+is.Message)
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(msg string, path ...string) {
	if path == nil {
		path = []string{}
	}
	e.Issues = append(e.Issues, Issue{Path: path, Message: msg})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// UpstreamError reports a non-2xx answer from an upstream service.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed with status: %d", e.Status)
}
