package engine

import "fmt"

// Stages of a ProcessMessage turn, used for error context and metrics labels.
const (
	StageExtraction = "extraction"
	StageCompletion = "completion"
)

// GenerationError reports a failed generation step. Nothing is persisted for
// the turn that produced it, so the session's last stored state is intact and
// the turn can be retried as-is.
type GenerationError struct {
	SessionID string
	Stage     string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for session %s during %s: %v", e.SessionID, e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ToolError reports a registered completion tool that returned an error.
// As with GenerationError, the turn persists nothing.
type ToolError struct {
	SessionID string
	Tool      string
	Err       error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed for session %s: %v", e.Tool, e.SessionID, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
