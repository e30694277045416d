// Package prompt builds structured prompts for LLM completion clients
package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Builder accumulates system/user/assistant messages and named data blocks,
// then flattens them into a single prompt string. Data blocks are rendered as
// YAML so the model sees structured context without JSON escaping noise.
type Builder struct {
	messages []message
}

type message struct {
	role    string
	content string
}

// System appends a system message.
func (b *Builder) System(content string) *Builder {
	b.messages = append(b.messages, message{role: "system", content: content})
	return b
}

// User appends a user message.
func (b *Builder) User(content string) *Builder {
	b.messages = append(b.messages, message{role: "user", content: content})
	return b
}

// Assistant appends an assistant message.
func (b *Builder) Assistant(content string) *Builder {
	b.messages = append(b.messages, message{role: "assistant", content: content})
	return b
}

// Block appends a named data block as a system message. Scalars are included
// verbatim; maps, slices and structs are rendered as YAML.
func (b *Builder) Block(name string, data any) error {
	rendered, err := formatData(data)
	if err != nil {
		return fmt.Errorf("failed to render block %q: %w", name, err)
	}
	b.messages = append(b.messages, message{
		role:    "system",
		content: fmt.Sprintf("[%s]\n%s", name, rendered),
	})
	return nil
}

// Len returns the number of accumulated messages.
func (b *Builder) Len() int {
	return len(b.messages)
}

// Clear removes all accumulated messages so the builder can be reused.
func (b *Builder) Clear() {
	b.messages = b.messages[:0]
}

// Render flattens the messages into one prompt string, role-labelled sections
// separated by blank lines.
func (b *Builder) Render() string {
	sections := make([]string, 0, len(b.messages))
	for _, m := range b.messages {
		sections = append(sections, fmt.Sprintf("%s:\n%s", m.role, m.content))
	}
	return strings.Join(sections, "\n\n")
}

// formatData renders block payloads: strings pass through, everything else
// goes through YAML marshalling.
func formatData(data any) (string, error) {
	switch v := data.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
