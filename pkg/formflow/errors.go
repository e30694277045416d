package formflow

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dan-solli/formflow/pkg/engine"
	"github.com/dan-solli/formflow/pkg/llm"
	"github.com/dan-solli/formflow/pkg/store"
)

// Error type constants for classification
const (
	ErrTypeConfiguration = "configuration"
	ErrTypeGeneration    = "generation"
	ErrTypeSession       = "session"
	ErrTypeTool          = "tool"
	ErrTypeDatabase      = "database"
	ErrTypeTimeout       = "timeout"
	ErrTypeNetwork       = "network"
	ErrTypeUnknown       = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	// Typed errors first, they carry exact intent
	if errors.Is(err, store.ErrInvalidConfig) {
		return ErrTypeConfiguration
	}
	if errors.Is(err, store.ErrSessionNotFound) {
		return ErrTypeSession
	}
	var toolErr *engine.ToolError
	if errors.As(err, &toolErr) {
		return ErrTypeTool
	}
	var genErr *engine.GenerationError
	if errors.As(err, &genErr) {
		return ErrTypeGeneration
	}
	var budgetErr *llm.BudgetError
	if errors.As(err, &budgetErr) {
		return ErrTypeGeneration
	}
	var modelErr *llm.ModelNotFoundError
	if errors.As(err, &modelErr) {
		return ErrTypeGeneration
	}
	var schemaErr *llm.SchemaError
	if errors.As(err, &schemaErr) {
		return ErrTypeGeneration
	}

	errStrLower := strings.ToLower(err.Error())

	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	// Check for network errors
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return ErrTypeNetwork
	}
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "connection reset") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "network is unreachable") ||
		strings.Contains(errStrLower, "dial tcp") ||
		strings.Contains(errStrLower, "eof") {
		return ErrTypeNetwork
	}

	// Check for generation/API errors (OpenAI specific)
	if strings.Contains(errStrLower, "api error") ||
		strings.Contains(errStrLower, "rate limit") ||
		strings.Contains(errStrLower, "invalid response") ||
		strings.Contains(errStrLower, "openai") ||
		strings.Contains(errStrLower, "model") && strings.Contains(errStrLower, "not found") {
		return ErrTypeGeneration
	}

	// Check for database errors (SQLite specific)
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "constraint") ||
		strings.Contains(errStrLower, "unique") && strings.Contains(errStrLower, "failed") {
		return ErrTypeDatabase
	}

	// Check for configuration/validation errors
	if strings.Contains(errStrLower, "validation") ||
		strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "cannot be empty") ||
		strings.Contains(errStrLower, "must be") {
		return ErrTypeConfiguration
	}

	// Default to unknown
	return ErrTypeUnknown
}
