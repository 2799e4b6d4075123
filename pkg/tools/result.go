// Package tools defines the tool gateway capability interface and a local
// workspace-scoped implementation covering filesystem, process, search,
// and git operations.
package tools

// Result is the record returned by every capability call. Metadata is
// always non-nil and must be preserved unchanged through every wrapping
// layer; no layer may rebuild a Result and drop keys.
type Result struct {
	Success  bool           `json:"success"`
	Output   any            `json:"output"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// OK builds a successful Result. A nil metadata map is replaced with an
// empty one so Metadata is never absent.
func OK(output any, metadata map[string]any) Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Result{Success: true, Output: output, Metadata: metadata}
}

// Fail builds a failed Result with the given error text.
func Fail(errText string, metadata map[string]any) Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Result{Success: false, Error: errText, Metadata: metadata}
}
