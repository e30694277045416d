// Package simulate drives a form-filling dialogue with a roleplayed user so
// form flows can be exercised end to end without a human in the loop.
package simulate

import (
	"context"
	"fmt"

	"github.com/dan-solli/formflow/pkg/form"
	"github.com/dan-solli/formflow/pkg/llm"
	"github.com/dan-solli/formflow/pkg/prompt"
	"github.com/dan-solli/formflow/pkg/store"
)

// Processor is the engine side of the dialogue.
type Processor interface {
	ProcessMessage(ctx context.Context, sessionID, message string) (*form.State, error)
}

const defaultOpener = "Hi!"

const defaultPersona = "A friendly, slightly scatterbrained person who answers questions honestly but volunteers one thing at a time."

// simSystemPrompt instructs the model to stay in character and answer only
// the latest question
const simSystemPrompt = `You are roleplaying a user who is being interviewed to fill in a form. Stay in character as described in [PERSONA]. Answer the interviewer's latest question in one or two sentences, the way that person would. Do not ask questions back.

Return ONLY valid JSON:
{"response": "..."}`

// simResponse is the JSON shape the roleplayed user returns
type simResponse struct {
	Response string `json:"response"`
}

// Turn records one exchange: what the simulated user said and the state the
// engine produced from it.
type Turn struct {
	UserMessage string
	State       *form.State
}

// Config holds the agent's dependencies. Engine and Client are required.
type Config struct {
	// Engine processes the simulated user's messages
	Engine Processor

	// Client generates the simulated user's replies
	Client llm.Client

	// Persona describes the simulated user. A generic persona is used when
	// empty.
	Persona string

	// Opener is the first message of the dialogue
	Opener string
}

// Agent runs scripted-free dialogues against an engine, playing the user.
type Agent struct {
	engine  Processor
	client  llm.Client
	persona string
	opener  string
}

// New validates the configuration and builds an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("%w: engine is required", store.ErrInvalidConfig)
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: llm client is required", store.ErrInvalidConfig)
	}
	persona := cfg.Persona
	if persona == "" {
		persona = defaultPersona
	}
	opener := cfg.Opener
	if opener == "" {
		opener = defaultOpener
	}
	return &Agent{
		engine:  cfg.Engine,
		client:  cfg.Client,
		persona: persona,
		opener:  opener,
	}, nil
}

// RunDialog plays the user until the form reaches a terminal state or
// maxTurns is exhausted. It returns the full dialogue either way; running out
// of turns is not an error, the caller inspects the last turn's state.
func (a *Agent) RunDialog(ctx context.Context, sessionID string, maxTurns int) ([]Turn, error) {
	if maxTurns <= 0 {
		return nil, fmt.Errorf("%w: maxTurns must be positive", store.ErrInvalidConfig)
	}

	turns := make([]Turn, 0, maxTurns)
	message := a.opener
	for i := 0; i < maxTurns; i++ {
		st, err := a.engine.ProcessMessage(ctx, sessionID, message)
		if err != nil {
			return turns, fmt.Errorf("dialogue turn %d failed: %w", i+1, err)
		}
		turns = append(turns, Turn{UserMessage: message, State: st})

		// A complete form ends the dialogue whether or not a completion
		// tool produced a terminal result; there is nothing left to ask.
		if st.Complete() {
			return turns, nil
		}

		message, err = a.reply(ctx, turns, st.NextQuestion)
		if err != nil {
			return turns, fmt.Errorf("dialogue turn %d failed: %w", i+1, err)
		}
	}
	return turns, nil
}

// reply generates the simulated user's answer to the engine's question.
func (a *Agent) reply(ctx context.Context, turns []Turn, question string) (string, error) {
	if question == "" {
		// Engine had nothing to ask. Nudge the dialogue along.
		question = "Anything else you'd like to share?"
	}

	b := &prompt.Builder{}
	b.System(simSystemPrompt)
	if err := b.Block("PERSONA", a.persona); err != nil {
		return "", fmt.Errorf("failed to build simulation prompt: %w", err)
	}
	for _, turn := range turns {
		b.User(turn.UserMessage)
		if turn.State.NextQuestion != "" {
			b.Assistant(turn.State.NextQuestion)
		}
	}
	b.Assistant(question)

	var res simResponse
	if err := a.client.CompleteWithSchema(ctx, b.Render(), &res); err != nil {
		return "", fmt.Errorf("failed to generate simulated reply: %w", err)
	}
	if res.Response == "" {
		return "", fmt.Errorf("simulated reply was empty")
	}
	return res.Response, nil
}
