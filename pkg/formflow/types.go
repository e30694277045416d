package formflow

import (
	"github.com/dan-solli/formflow/pkg/form"
	"github.com/dan-solli/formflow/pkg/simulate"
	"github.com/dan-solli/formflow/pkg/tool"
)

// Type re-exports for caller convenience

// Schema is re-exported from form package
type Schema = form.Schema

// Field is re-exported from form package
type Field = form.Field

// Values is re-exported from form package
type Values = form.Values

// State is re-exported from form package
type State = form.State

// Field kind constants re-exported from form package
const (
	KindString = form.KindString
	KindInt    = form.KindInt
	KindFloat  = form.KindFloat
	KindBool   = form.KindBool
)

// Tool is re-exported from tool package
type Tool = tool.Tool

// Invocation is re-exported from tool package
type Invocation = tool.Invocation

// ToolResult is re-exported from tool package
type ToolResult = tool.Result

// Tool kind constants re-exported from tool package
const (
	KindExtraction = tool.KindExtraction
	KindCompletion = tool.KindCompletion
)

// Turn is re-exported from simulate package
type Turn = simulate.Turn
