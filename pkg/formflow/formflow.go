// Package formflow provides a dialogue-driven form filling system backed by
// LLMs: a session engine that extracts field values from free-form messages,
// tracks completion progress and hands finished forms to registered tools.
package formflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/formflow/pkg/engine"
	"github.com/dan-solli/formflow/pkg/form"
	"github.com/dan-solli/formflow/pkg/llm"
	"github.com/dan-solli/formflow/pkg/metrics"
	"github.com/dan-solli/formflow/pkg/simulate"
	"github.com/dan-solli/formflow/pkg/store"
	"github.com/dan-solli/formflow/pkg/tool"
	"github.com/dan-solli/formflow/pkg/trace"
)

// Config holds configuration for a Flow instance
type Config struct {
	// OpenAI API key for the generation capability
	OpenAIKey string

	// Model for extraction and simulation (default: "gpt-4o-mini")
	Model string

	// BudgetTokens caps total token usage, 0 means unlimited
	BudgetTokens int64

	// Schema describes the form to fill (required unless Engine is set)
	Schema *form.Schema

	// Rules is free-form guidance appended to the extraction prompt
	Rules string

	// DBPath is the SQLite database path. Empty uses the in-memory store.
	DBPath string

	// TracePath enables trace export to a JSON Lines file when non-empty
	// (requires a build with -tags tracing)
	TracePath string

	// Client overrides the OpenAI client, mainly for tests
	Client llm.Client

	// Store overrides the store selected via DBPath
	Store store.SessionStore

	// Metrics defaults to the collector for the current build
	Metrics metrics.Collector
}

// storageCounter is implemented by stores that can report table sizes.
type storageCounter interface {
	SessionCount(ctx context.Context) (int64, error)
	StateCount(ctx context.Context) (int64, error)
}

// Flow is the main entry point for the form filling system
type Flow struct {
	config  Config
	engine  *engine.Engine
	store   store.SessionStore
	client  llm.Client
	metrics metrics.Collector
	tracer  trace.Exporter
	tracing bool
}

// New creates a new Flow instance
func New(cfg Config) (*Flow, error) {
	client := cfg.Client
	if client == nil {
		openai := llm.NewOpenAIClient(cfg.OpenAIKey)
		if cfg.Model != "" {
			openai.Model = cfg.Model
		}
		openai.BudgetTokens = cfg.BudgetTokens
		client = openai
	}

	st := cfg.Store
	if st == nil {
		if cfg.DBPath != "" {
			sqlite, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open session store: %w", err)
			}
			st = sqlite
		} else {
			st = store.NewMemoryStore()
		}
	}

	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewDefaultCollector()
	}

	tracer, err := trace.NewFileExporter(cfg.TracePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace exporter: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Schema:  cfg.Schema,
		Store:   st,
		Client:  client,
		Rules:   cfg.Rules,
		Metrics: collector,
	})
	if err != nil {
		return nil, err
	}

	return &Flow{
		config:  cfg,
		engine:  eng,
		store:   st,
		client:  client,
		metrics: collector,
		tracer:  tracer,
		tracing: cfg.TracePath != "",
	}, nil
}

// Engine returns the underlying session engine.
func (f *Flow) Engine() *engine.Engine {
	return f.engine
}

// Store returns the session store.
func (f *Flow) Store() store.SessionStore {
	return f.store
}

// RegisterTool adds a completion tool that consumes finished forms.
func (f *Flow) RegisterTool(t *tool.Tool) error {
	return f.engine.RegisterTool(t)
}

// CreateSession opens a new form filling session.
func (f *Flow) CreateSession(ctx context.Context, userID, clientID string) (string, error) {
	start := time.Now()
	id, err := f.engine.CreateSession(ctx, userID, clientID)
	if err != nil {
		f.metrics.RecordOperation(ctx, "create_session", "error", time.Since(start).Milliseconds())
		return "", err
	}
	f.metrics.RecordOperation(ctx, "create_session", "success", time.Since(start).Milliseconds())
	f.updateStorageGauges(ctx)
	return id, nil
}

// ProcessMessage runs one dialogue turn for the session and returns the new
// form state.
func (f *Flow) ProcessMessage(ctx context.Context, sessionID, message string) (*form.State, error) {
	tr := newTrace()
	timer := newSpanTimer("process", tr, f.tracing)

	st, err := f.engine.ProcessMessage(ctx, sessionID, message)
	if err != nil {
		timer.finish(false, err, nil)
		f.exportTrace(ctx, "process_message", sessionID, tr, ClassifyError(err))
		return nil, err
	}

	timer.finish(true, nil, map[string]int64{
		"progress":     int64(st.Progress),
		"fieldsFilled": int64(f.engine.Schema().FilledCount(st.Form)),
	})
	f.exportTrace(ctx, "process_message", sessionID, tr, "")
	f.updateStorageGauges(ctx)
	return st, nil
}

// History returns the session's stored state versions, oldest first.
func (f *Flow) History(ctx context.Context, sessionID string) ([]*form.State, error) {
	return f.store.StateHistory(ctx, sessionID)
}

// Messages returns the session's chat log, oldest first.
func (f *Flow) Messages(ctx context.Context, sessionID string) ([]store.ChatMessage, error) {
	return f.store.Messages(ctx, sessionID)
}

// CloseSession marks the session inactive. Its history is retained.
func (f *Flow) CloseSession(ctx context.Context, sessionID string) error {
	return f.store.CloseSession(ctx, sessionID)
}

// Simulate plays a roleplayed user against the session until the form is
// complete or maxTurns runs out, returning the full dialogue.
func (f *Flow) Simulate(ctx context.Context, sessionID, persona string, maxTurns int) ([]simulate.Turn, error) {
	agent, err := simulate.New(simulate.Config{
		Engine:  f.engine,
		Client:  f.client,
		Persona: persona,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tr := newTrace()
	timer := newSpanTimer("sim-turn", tr, f.tracing)

	turns, err := agent.RunDialog(ctx, sessionID, maxTurns)
	if err != nil {
		timer.finish(false, err, map[string]int64{"turns": int64(len(turns))})
		f.exportTrace(ctx, "simulate", sessionID, tr, ClassifyError(err))
		f.metrics.RecordOperation(ctx, "simulate", "error", time.Since(start).Milliseconds())
		return turns, err
	}

	timer.finish(true, nil, map[string]int64{"turns": int64(len(turns))})
	f.exportTrace(ctx, "simulate", sessionID, tr, "")
	f.metrics.RecordOperation(ctx, "simulate", "success", time.Since(start).Milliseconds())
	return turns, nil
}

// Close releases the store and flushes the trace exporter.
func (f *Flow) Close() error {
	traceErr := f.tracer.Close()
	if err := f.store.Close(); err != nil {
		return err
	}
	return traceErr
}

// exportTrace converts an operation trace into an exportable record. Export
// failures are swallowed; tracing never fails an operation.
func (f *Flow) exportTrace(ctx context.Context, operation, sessionID string, tr *OperationTrace, errorType string) {
	if !f.tracing {
		return
	}

	status := "success"
	if errorType != "" {
		status = "error"
	}
	spans := make([]trace.SpanRecord, 0, len(tr.Spans))
	for _, s := range tr.Spans {
		rec := trace.SpanRecord{
			Name:       s.Name,
			DurationMs: s.DurationMs,
			OK:         s.OK,
			Counters:   s.Counters,
		}
		if !s.OK {
			rec.ErrorType = errorType
		}
		spans = append(spans, rec)
	}
	record := &trace.TraceRecord{
		Timestamp:   time.Now(),
		OperationID: uuid.NewString(),
		Operation:   operation,
		DurationMs:  tr.TotalDurationMs,
		Status:      status,
		Spans:       spans,
		ErrorType:   errorType,
		IDs:         map[string]interface{}{"sessionId": sessionID},
	}
	_ = f.tracer.Export(ctx, record)
}

// updateStorageGauges refreshes storage metrics for stores that expose counts.
func (f *Flow) updateStorageGauges(ctx context.Context) {
	counter, ok := f.store.(storageCounter)
	if !ok {
		return
	}
	if sessions, err := counter.SessionCount(ctx); err == nil {
		f.metrics.SetStorageCount(ctx, "sessions", sessions)
	}
	if states, err := counter.StateCount(ctx); err == nil {
		f.metrics.SetStorageCount(ctx, "states", states)
	}
}
