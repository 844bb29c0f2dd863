// Package assistant is the tool-call execution engine: an external planner
// posts a named action with a loose argument bag; the engine resolves fuzzy
// entity references, enforces parent-link invariants, allocates document
// numbers, and answers through a uniform envelope.
package assistant

import "fmt"

// Envelope is the uniform result shape returned by every dispatched action.
// Message is always human-readable; Data carries machine-usable fields, at
// minimum an id for created entities.
type Envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message"`
}

// ErrorKind classifies expected domain failures. All of them travel through
// the envelope with success=false; none may escape the dispatcher.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation_error"
	KindMissingLink ErrorKind = "missing_required_link"
	KindNotFound    ErrorKind = "entity_not_found"
	KindNumbering   ErrorKind = "numbering_error"
	KindUnknownTool ErrorKind = "unknown_tool"
)

// Error is an expected domain failure. NextAction, when set, names the
// read-only action the planner should invoke to resolve the situation.
type Error struct {
	Kind       ErrorKind
	Message    string
	NextAction string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func validationErr(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// failure converts a domain error into its envelope.
func failure(e *Error) Envelope {
	data := map[string]any{"error": string(e.Kind)}
	message := e.Message
	if e.NextAction != "" {
		data["next_action"] = e.NextAction
	}
	return Envelope{Success: false, Data: data, Message: message}
}
