// Package tool defines invokable capabilities and their progress-gated registry
package tool

import (
	"context"
	"fmt"

	"github.com/dan-solli/formflow/pkg/form"
)

// Kind separates the built-in field-extraction capability from
// caller-registered completion capabilities.
type Kind string

// Tool kinds
const (
	// KindExtraction collects field values while the form is incomplete
	KindExtraction Kind = "extraction"

	// KindCompletion produces a terminal result once the form is saturated
	KindCompletion Kind = "completion"
)

// Invocation carries the context a tool runs against.
type Invocation struct {
	// SessionID scopes the invocation
	SessionID string

	// Message is the user's raw message this turn (empty for completion
	// invocations triggered by an already-complete form)
	Message string

	// State is the current session state the tool may read. Tools must not
	// mutate it; they communicate through the returned Result.
	State *form.State
}

// Result is a tool's structured output. Extraction tools populate Values and
// the question fields; completion tools populate Output.
type Result struct {
	// Values holds extracted field values, merged field-wise by the engine
	Values form.Values

	// NextQuestion is the clarifying question for the next turn
	NextQuestion string

	// Feedback is commentary on the user's answer
	Feedback string

	// Confidence is the tool's confidence in the extraction (0-1)
	Confidence float64

	// Output is a completion tool's terminal result
	Output map[string]any
}

// Tool is one invokable capability: a name, a description the model and
// callers see, declared input/output field schemas, and the function that
// runs it.
type Tool struct {
	Name        string
	Description string
	Kind        Kind

	// InputSchema and OutputSchema describe the tool's parameters and result
	// fields (name -> description), exposed to the generation capability.
	InputSchema  map[string]string
	OutputSchema map[string]string

	Invoke func(ctx context.Context, inv Invocation) (*Result, error)
}

// Validate checks that the tool is registrable.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Description == "" {
		return fmt.Errorf("tool %q must have a description", t.Name)
	}
	switch t.Kind {
	case KindExtraction, KindCompletion:
	default:
		return fmt.Errorf("tool %q has unknown kind %q", t.Name, t.Kind)
	}
	if t.Invoke == nil {
		return fmt.Errorf("tool %q has no invoke function", t.Name)
	}
	return nil
}
