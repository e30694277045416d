package form

import "time"

// Values maps field names to their current string values.
type Values map[string]string

// Clone returns a deep copy of the values map.
func (v Values) Clone() Values {
	clone := make(Values, len(v))
	for name, value := range v {
		clone[name] = value
	}
	return clone
}

// State is one immutable snapshot of a session's form progress.
// States are append-only: the engine never mutates a stored version, it
// builds a new one per processed message.
type State struct {
	// Form holds the current field values
	Form Values `json:"form"`

	// Progress is form completion 0-100, monotonically non-decreasing per session
	Progress int `json:"progress"`

	// PrevQuestion is the question the user was answering this turn
	PrevQuestion string `json:"prev_question"`

	// PrevAnswer is the raw user message that produced this state
	PrevAnswer string `json:"prev_answer"`

	// NextQuestion is the question to present next turn; empty once a
	// completion tool has produced a terminal result
	NextQuestion string `json:"next_question"`

	// Feedback is the extraction model's commentary on the provided answer
	Feedback string `json:"feedback,omitempty"`

	// Confidence is the extraction model's confidence in the state (0-1)
	Confidence float64 `json:"confidence,omitempty"`

	// Meta is an open extension map for tool output and caller annotations.
	// Completion tools attach their terminal result here under "result".
	Meta map[string]any `json:"meta,omitempty"`

	// CreatedAt is set once when the state is stored
	CreatedAt time.Time `json:"created_at"`
}

// MetaKeyResult is the Meta key under which a completion tool's terminal
// output is attached.
const MetaKeyResult = "result"

// NewState builds the initial state for a fresh session: schema defaults,
// zero progress, empty question history.
func NewState(schema *Schema) *State {
	return &State{
		Form: schema.Defaults(),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	clone := *s
	clone.Form = s.Form.Clone()
	if s.Meta != nil {
		meta := make(map[string]any, len(s.Meta))
		for k, v := range s.Meta {
			meta[k] = v
		}
		clone.Meta = meta
	}
	return &clone
}

// Complete reports whether the form has reached full progress.
func (s *State) Complete() bool {
	return s.Progress >= 100
}

// Terminal reports whether a completion tool has produced final output for
// this session (no further questions will be asked).
func (s *State) Terminal() bool {
	if !s.Complete() {
		return false
	}
	if s.Meta == nil {
		return false
	}
	_, ok := s.Meta[MetaKeyResult]
	return ok
}
