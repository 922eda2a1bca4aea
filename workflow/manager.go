package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
	"github.com/wippyai/synapse/runtime"
)

// Dispatcher runs calls. *runtime.Runtime implements it.
type Dispatcher interface {
	Submit(ctx context.Context, call engine.Call) (*runtime.Future, error)
	Close(ctx context.Context) error
}

// Result is the outcome of one workflow execution.
type Result struct {
	Err   error
	Value clv.Value
}

// Report maps workflow ids to their results.
type Report map[string]Result

// Failed returns the ids of failed workflows, sorted.
func (r Report) Failed() []string {
	var ids []string
	for id, res := range r {
		if res.Err != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// Manager is a registry of workflows that runs them through a Dispatcher.
// Registered workflows are never mutated; updates replace them.
type Manager struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	workflows  map[string]Workflow
	mu         sync.RWMutex
}

// NewManager creates a manager that submits to d.
func NewManager(d Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		dispatcher: d,
		workflows:  make(map[string]Workflow),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// AddWorkflow registers w. A workflow with the same id is left untouched
// and a duplicate id error is returned.
func (m *Manager) AddWorkflow(w Workflow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[w.ID]; ok {
		return errors.DuplicateID(w.ID)
	}
	m.workflows[w.ID] = w
	m.logger.Debug("workflow added", zap.String("workflow", w.ID))
	return nil
}

// ReplaceWorkflow registers w in place of any workflow with its id.
func (m *Manager) ReplaceWorkflow(w Workflow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, w.ID)
	m.workflows[w.ID] = w
	return nil
}

// RemoveWorkflow unregisters id and reports whether it was present.
func (m *Manager) RemoveWorkflow(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return false
	}
	delete(m.workflows, id)
	return true
}

// GetWorkflow returns the workflow registered under id.
func (m *Manager) GetWorkflow(id string) (Workflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workflows[id]
	return w, ok
}

// GetWorkflows returns every registered workflow sorted by id.
func (m *Manager) GetWorkflows() []Workflow {
	m.mu.RLock()
	out := make([]Workflow, 0, len(m.workflows))
	for _, w := range m.workflows {
		out = append(out, w)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunWorkflow runs one workflow and waits for its result.
func (m *Manager) RunWorkflow(ctx context.Context, id string) (clv.Value, error) {
	w, ok := m.GetWorkflow(id)
	if !ok {
		return clv.Value{}, errors.NotFound("workflow", id)
	}
	f, err := m.dispatcher.Submit(ctx, w.Call())
	if err != nil {
		return clv.Value{}, err
	}
	return f.Wait(ctx)
}

// StartWorkflows submits every registered workflow before waiting on any,
// then collects every result. The error joins all failures.
func (m *Manager) StartWorkflows(ctx context.Context) (Report, error) {
	workflows := m.GetWorkflows()
	calls := make(map[string]engine.Call, len(workflows))
	for _, w := range workflows {
		calls[w.ID] = w.Call()
	}
	return m.run(ctx, "start", calls)
}

// StopWorkflows invokes the stop attribute of every workflow that has one.
func (m *Manager) StopWorkflows(ctx context.Context) (Report, error) {
	calls := make(map[string]engine.Call)
	for _, w := range m.GetWorkflows() {
		if c, ok := w.StopCall(); ok {
			calls[w.ID] = c
		}
	}
	return m.run(ctx, "stop", calls)
}

func (m *Manager) run(ctx context.Context, op string, calls map[string]engine.Call) (Report, error) {
	ids := make([]string, 0, len(calls))
	for id := range calls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := make(Report, len(ids))
	futures := make(map[string]*runtime.Future, len(ids))
	for _, id := range ids {
		f, err := m.dispatcher.Submit(ctx, calls[id])
		if err != nil {
			report[id] = Result{Err: err}
			continue
		}
		futures[id] = f
	}

	for _, id := range ids {
		f, ok := futures[id]
		if !ok {
			continue
		}
		v, err := f.Wait(ctx)
		report[id] = Result{Value: v, Err: err}
	}

	var errs []error
	for _, id := range report.Failed() {
		err := report[id].Err
		m.logger.Warn("workflow failed", zap.String("op", op), zap.String("workflow", id), zap.Error(err))
		errs = append(errs, fmt.Errorf("workflow %s: %w", id, err))
	}
	m.logger.Info("workflows finished",
		zap.String("op", op),
		zap.Int("total", len(ids)),
		zap.Int("failed", len(errs)))
	return report, stderrors.Join(errs...)
}

// Close stops every workflow, ignoring stop failures, and closes the
// dispatcher.
func (m *Manager) Close(ctx context.Context) error {
	if _, err := m.StopWorkflows(ctx); err != nil {
		m.logger.Warn("stop workflows on close", zap.Error(err))
	}
	return m.dispatcher.Close(ctx)
}
