// Package engine drives the fill-a-form-over-dialogue loop: load the
// session's latest state, pick the applicable tool for its progress, merge
// extracted values, and persist a new state version.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dan-solli/formflow/pkg/form"
	"github.com/dan-solli/formflow/pkg/llm"
	"github.com/dan-solli/formflow/pkg/metrics"
	"github.com/dan-solli/formflow/pkg/store"
	"github.com/dan-solli/formflow/pkg/tool"
)

const opProcessMessage = "process_message"

// Config holds the engine's dependencies. Schema, Store and Client are
// required; everything else has a usable default.
type Config struct {
	// Schema describes the form being filled
	Schema *form.Schema

	// Store persists sessions, state versions and the chat log
	Store store.SessionStore

	// Client is the generation capability for extraction
	Client llm.Client

	// Registry receives the built-in extraction tool and any completion
	// tools. A fresh registry is created when nil.
	Registry *tool.Registry

	// Rules is free-form guidance appended to the extraction prompt
	Rules string

	// Metrics defaults to the no-op collector
	Metrics metrics.Collector
}

// Engine processes dialogue turns against a single form schema.
// Calls for the same session are serialized; distinct sessions run in
// parallel.
type Engine struct {
	schema   *form.Schema
	store    store.SessionStore
	registry *tool.Registry
	metrics  metrics.Collector

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New validates the configuration and builds an engine. The built-in
// extraction tool is registered before any caller-supplied tools are
// consulted.
func New(cfg Config) (*Engine, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("%w: schema is required", store.ErrInvalidConfig)
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidConfig, err)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: session store is required", store.ErrInvalidConfig)
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: llm client is required", store.ErrInvalidConfig)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	if err := registry.Register(newExtractionTool(cfg.Client, cfg.Schema, cfg.Rules)); err != nil {
		return nil, fmt.Errorf("failed to register extraction tool: %w", err)
	}

	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewDefaultCollector()
	}

	return &Engine{
		schema:   cfg.Schema,
		store:    cfg.Store,
		registry: registry,
		metrics:  collector,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Schema returns the form schema the engine fills.
func (e *Engine) Schema() *form.Schema {
	return e.schema
}

// RegisterTool adds a caller-supplied tool, typically a completion tool that
// consumes the finished form.
func (e *Engine) RegisterTool(t *tool.Tool) error {
	return e.registry.Register(t)
}

// CreateSession opens a new session for this engine's schema.
func (e *Engine) CreateSession(ctx context.Context, userID, clientID string) (string, error) {
	return e.store.CreateSession(ctx, userID, clientID, e.schema.Name)
}

// History returns the session's stored state versions, oldest first.
func (e *Engine) History(ctx context.Context, sessionID string) ([]*form.State, error) {
	return e.store.StateHistory(ctx, sessionID)
}

// ProcessMessage runs one dialogue turn: extract field values from the
// message while the form is incomplete, or hand the finished form to the
// registered completion tool. On success exactly one new state version is
// persisted; on any failure nothing is persisted and the session's prior
// state is untouched.
func (e *Engine) ProcessMessage(ctx context.Context, sessionID, message string) (*form.State, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	st, selected, err := e.loadAndSelect(ctx, sessionID)
	if err != nil {
		e.metrics.RecordError(ctx, opProcessMessage, "load")
		e.metrics.RecordOperation(ctx, opProcessMessage, "error", time.Since(start).Milliseconds())
		return nil, err
	}

	var next *form.State
	if st.Complete() {
		if selected == nil {
			// Finished form, nothing registered to consume it. The turn
			// changes nothing, so there is nothing to persist.
			e.metrics.RecordOperation(ctx, opProcessMessage, "success", time.Since(start).Milliseconds())
			return st, nil
		}
		next, err = e.runCompletion(ctx, sessionID, message, st, selected)
	} else {
		next, err = e.runExtraction(ctx, sessionID, message, st, selected)
	}
	if err != nil {
		e.metrics.RecordOperation(ctx, opProcessMessage, "error", time.Since(start).Milliseconds())
		return nil, err
	}

	saveStart := time.Now()
	if err := e.store.SaveState(ctx, sessionID, next); err != nil {
		e.metrics.RecordError(ctx, opProcessMessage, "database")
		e.metrics.RecordOperation(ctx, opProcessMessage, "error", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("failed to save form state: %w", err)
	}
	e.metrics.RecordStage(ctx, opProcessMessage, "save-state", time.Since(saveStart).Milliseconds())

	e.logTurn(ctx, sessionID, message, next)
	e.metrics.RecordOperation(ctx, opProcessMessage, "success", time.Since(start).Milliseconds())
	return next, nil
}

// loadAndSelect fetches the session's latest state (or a fresh default) and
// picks the tool gated on its progress.
func (e *Engine) loadAndSelect(ctx context.Context, sessionID string) (*form.State, *tool.Tool, error) {
	st, err := e.store.LatestState(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if st == nil {
		st = form.NewState(e.schema)
	}
	return st, e.registry.Select(st.Progress), nil
}

// runExtraction invokes the extraction tool and folds its values into a new
// state version. Progress never decreases: the recomputed value is clamped
// against the loaded state's.
func (e *Engine) runExtraction(ctx context.Context, sessionID, message string, st *form.State, extract *tool.Tool) (*form.State, error) {
	stageStart := time.Now()
	res, err := extract.Invoke(ctx, tool.Invocation{SessionID: sessionID, Message: message, State: st})
	e.metrics.RecordStage(ctx, opProcessMessage, StageExtraction, time.Since(stageStart).Milliseconds())
	if err != nil {
		e.metrics.RecordError(ctx, opProcessMessage, "generation")
		return nil, &GenerationError{SessionID: sessionID, Stage: StageExtraction, Err: err}
	}

	merged := e.schema.Merge(st.Form, res.Values)
	if err := e.schema.ValidateValues(merged); err != nil {
		e.metrics.RecordError(ctx, opProcessMessage, "validation")
		return nil, &GenerationError{SessionID: sessionID, Stage: StageExtraction, Err: err}
	}

	progress := e.schema.Progress(merged)
	if progress < st.Progress {
		progress = st.Progress
	}

	next := &form.State{
		Form:         merged,
		Progress:     progress,
		PrevQuestion: st.NextQuestion,
		PrevAnswer:   message,
		NextQuestion: res.NextQuestion,
		Feedback:     res.Feedback,
		Confidence:   res.Confidence,
	}

	// When this turn saturated the form, the completion tool fires in the
	// same turn rather than waiting for another message.
	if next.Complete() {
		if complete := e.registry.Select(next.Progress); complete != nil {
			if err := e.complete(ctx, sessionID, message, next, complete); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// runCompletion handles a turn whose loaded state is already complete.
func (e *Engine) runCompletion(ctx context.Context, sessionID, message string, st *form.State, complete *tool.Tool) (*form.State, error) {
	next := st.Clone()
	next.PrevQuestion = st.NextQuestion
	next.PrevAnswer = message
	next.CreatedAt = time.Time{}
	if err := e.complete(ctx, sessionID, message, next, complete); err != nil {
		return nil, err
	}
	return next, nil
}

// complete invokes the completion tool and folds its output into next.
// A completed form has no further question to ask.
func (e *Engine) complete(ctx context.Context, sessionID, message string, next *form.State, complete *tool.Tool) error {
	stageStart := time.Now()
	res, err := complete.Invoke(ctx, tool.Invocation{SessionID: sessionID, Message: message, State: next})
	e.metrics.RecordStage(ctx, opProcessMessage, StageCompletion, time.Since(stageStart).Milliseconds())
	if err != nil {
		e.metrics.RecordError(ctx, opProcessMessage, "tool")
		return &ToolError{SessionID: sessionID, Tool: complete.Name, Err: err}
	}
	if next.Meta == nil {
		next.Meta = make(map[string]any, 1)
	}
	next.Meta[form.MetaKeyResult] = res.Output
	next.NextQuestion = ""
	if res.Feedback != "" {
		next.Feedback = res.Feedback
	}
	return nil
}

// logTurn appends the user's message and the engine's reply to the chat log.
// The log is a side channel, so a write failure does not fail the turn.
func (e *Engine) logTurn(ctx context.Context, sessionID, message string, next *form.State) {
	if err := e.store.SaveMessage(ctx, sessionID, "user", message); err != nil {
		log.Printf("formflow: failed to log user message for session %s: %v", sessionID, err)
		return
	}
	reply := next.NextQuestion
	if reply == "" && next.Terminal() {
		reply = next.Feedback
	}
	if reply == "" {
		return
	}
	if err := e.store.SaveMessage(ctx, sessionID, "assistant", reply); err != nil {
		log.Printf("formflow: failed to log assistant message for session %s: %v", sessionID, err)
	}
}

// sessionLock returns the mutex serializing turns for one session.
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[sessionID] = l
	}
	return l
}
