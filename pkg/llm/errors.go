package llm

import "fmt"

// BudgetError is returned when a request would exceed the client's token
// budget. The request is refused before any network traffic.
type BudgetError struct {
	SpentTokens  int64
	BudgetTokens int64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("token budget of %d exceeded (spent: %d)", e.BudgetTokens, e.SpentTokens)
}

// ModelNotFoundError is returned when the provider rejects the configured
// model name.
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.Model)
}

// SchemaError is returned when a completion cannot be coerced into the
// caller's target struct. Raw holds the (fence-stripped) model output for
// diagnosis.
type SchemaError struct {
	Raw string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response does not match target schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
