package engine

import (
	"context"
	"fmt"

	"github.com/dan-solli/formflow/pkg/form"
	"github.com/dan-solli/formflow/pkg/llm"
	"github.com/dan-solli/formflow/pkg/prompt"
	"github.com/dan-solli/formflow/pkg/tool"
)

// ExtractionToolName is the name under which the built-in field-extraction
// tool is registered.
const ExtractionToolName = "extract_fields"

// extractionSystemPrompt is the instruction block for the field-extraction step
const extractionSystemPrompt = `You are a form-filling assistant. Read the user's latest message, update the form fields it answers, and decide the single best question to ask next.

Rules:
- Fill a field only when the user's message clearly answers it. Never guess.
- Field values are strings. Write numbers and booleans out plainly ("42", "true").
- Leave a field out of "fields" when the message says nothing about it.
- next_question: one question targeting the most important missing field. Ask about one field at a time.
- feedback: one short remark on the user's answer.
- confidence: your confidence in the extracted values, 0.0 to 1.0.

Return ONLY valid JSON:
{"fields": {"<field>": "<value>"}, "next_question": "...", "feedback": "...", "confidence": 0.0}`

// extractionResult is the JSON shape the model returns for one turn
type extractionResult struct {
	Fields       form.Values `json:"fields"`
	NextQuestion string      `json:"next_question"`
	Feedback     string      `json:"feedback"`
	Confidence   float64     `json:"confidence"`
}

// newExtractionTool builds the extraction tool bound to a schema and client.
// Custom rules, when non-empty, are appended to the prompt as their own block.
func newExtractionTool(client llm.Client, schema *form.Schema, rules string) *tool.Tool {
	return &tool.Tool{
		Name:        ExtractionToolName,
		Description: "Updates form fields from the user's message and picks the next question",
		Kind:        tool.KindExtraction,
		InputSchema: map[string]string{
			"message": "The user's latest message",
		},
		OutputSchema: map[string]string{
			"fields":        "Field name to extracted value",
			"next_question": "Question to ask next",
			"feedback":      "Remark on the user's answer",
			"confidence":    "Extraction confidence, 0.0 to 1.0",
		},
		Invoke: func(ctx context.Context, inv tool.Invocation) (*tool.Result, error) {
			p, err := buildExtractionPrompt(schema, rules, inv)
			if err != nil {
				return nil, err
			}

			var res extractionResult
			if err := client.CompleteWithSchema(ctx, p, &res); err != nil {
				return nil, fmt.Errorf("failed to extract form fields: %w", err)
			}

			return &tool.Result{
				Values:       res.Fields,
				NextQuestion: res.NextQuestion,
				Feedback:     res.Feedback,
				Confidence:   res.Confidence,
			}, nil
		},
	}
}

// buildExtractionPrompt flattens the schema, the current state and the user's
// message into one prompt string.
func buildExtractionPrompt(schema *form.Schema, rules string, inv tool.Invocation) (string, error) {
	fields := make(map[string]string, len(schema.Fields))
	for _, f := range schema.Fields {
		kind := f.Kind
		if kind == "" {
			kind = form.KindString
		}
		desc := f.Description
		if desc == "" {
			desc = f.Name
		}
		fields[f.Name] = fmt.Sprintf("%s (type: %s)", desc, kind)
	}

	b := &prompt.Builder{}
	b.System(extractionSystemPrompt)
	if err := b.Block("FORM_STRUCTURE", fields); err != nil {
		return "", fmt.Errorf("failed to build extraction prompt: %w", err)
	}
	current := map[string]any{
		"fields":            inv.State.Form,
		"progress":          inv.State.Progress,
		"previous_question": inv.State.NextQuestion,
	}
	if err := b.Block("CURRENT_STATE", current); err != nil {
		return "", fmt.Errorf("failed to build extraction prompt: %w", err)
	}
	if rules != "" {
		if err := b.Block("CUSTOM_RULES", rules); err != nil {
			return "", fmt.Errorf("failed to build extraction prompt: %w", err)
		}
	}
	b.User(inv.Message)
	return b.Render(), nil
}
