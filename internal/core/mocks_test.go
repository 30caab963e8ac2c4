package core

import (
	"context"
	"sync"

	"github.com/valter-silva-au/ai-cad-agent/pkg/models"
)

// fakeDocument implements Document with injectable failures.
type fakeDocument struct {
	mu         sync.Mutex
	attached   bool
	name       string
	order      []string
	entities   map[string]models.EntitySnapshot
	removeErr  map[string]error
	recompErr  error
	removed    []string
	recomputes int
}

func newFakeDocument(ids ...string) *fakeDocument {
	d := &fakeDocument{
		attached:  true,
		name:      "TestDoc",
		entities:  make(map[string]models.EntitySnapshot),
		removeErr: make(map[string]error),
	}
	for _, id := range ids {
		d.add(id)
	}
	return d
}

func (d *fakeDocument) add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = append(d.order, id)
	d.entities[id] = models.EntitySnapshot{Type: "Part::Box", Label: id}
}

func (d *fakeDocument) detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = false
}

func (d *fakeDocument) Attached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached
}

func (d *fakeDocument) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

func (d *fakeDocument) EntityIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

func (d *fakeDocument) Entity(id string) (models.EntitySnapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap, ok := d.entities[id]
	return snap, ok
}

func (d *fakeDocument) RemoveEntity(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.removeErr[id]; err != nil {
		return err
	}
	delete(d.entities, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.removed = append(d.removed, id)
	return nil
}

func (d *fakeDocument) Recompute() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recomputes++
	return d.recompErr
}

func (d *fakeDocument) ContextSnapshot() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, len(d.order))
	copy(ids, d.order)
	return map[string]any{
		"document_attached": d.attached,
		"document_name":     d.name,
		"entity_count":      len(d.order),
		"entity_ids":        ids,
	}
}

// fakeChannel implements ConfirmationChannel with a scripted answer.
type fakeChannel struct {
	mu      sync.Mutex
	approve bool
	err     error
	asked   []models.OperationDetails
}

func (c *fakeChannel) Confirm(details models.OperationDetails) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked = append(c.asked, details)
	return c.approve, c.err
}

func (c *fakeChannel) askedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.asked)
}

// capturedEvent is one LogEvent call recorded by captureEvents.
type capturedEvent struct {
	Type string
	Data map[string]any
}

// captureEvents implements EventLogger and records every call.
type captureEvents struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (l *captureEvents) LogEvent(eventType string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, capturedEvent{Type: eventType, Data: data})
	return nil
}

func (l *captureEvents) ofType(eventType string) []capturedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []capturedEvent
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeWorker implements Worker with injectable behavior. The zero-value
// execute completes every task.
type fakeWorker struct {
	name     string
	caps     []models.TaskType
	validate func(params map[string]any) error
	execute  func(ctx context.Context, task models.Task) (models.TaskResult, error)
}

func newFakeWorker(name string, caps ...models.TaskType) *fakeWorker {
	if len(caps) == 0 {
		caps = []models.TaskType{models.TaskGeometryCreation}
	}
	return &fakeWorker{name: name, caps: caps}
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Capabilities() []models.TaskType { return w.caps }

func (w *fakeWorker) CanHandle(task models.Task) bool {
	for _, c := range w.caps {
		if c == task.Type {
			return true
		}
	}
	return false
}

func (w *fakeWorker) ValidateParameters(params map[string]any) error {
	if w.validate != nil {
		return w.validate(params)
	}
	return nil
}

func (w *fakeWorker) Execute(ctx context.Context, task models.Task) (models.TaskResult, error) {
	if w.execute != nil {
		return w.execute(ctx, task)
	}
	return models.TaskResult{TaskID: task.ID, Status: models.TaskCompleted}, nil
}

// fakePlanner implements Planner with scripted behavior for coordinator
// tests.
type fakePlanner struct {
	mu         sync.Mutex
	registered []Worker
	results    map[string]models.TaskResult
	execErr    error
	finalState models.PlanStatus
	active     []*models.ExecutionPlan
	cancelled  []string
	cancelErr  error
}

func (p *fakePlanner) RegisterWorker(w Worker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, w)
	return nil
}

func (p *fakePlanner) CapableWorker(task models.Task) (Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.registered {
		if w.CanHandle(task) {
			return w, true
		}
	}
	return nil, false
}

func (p *fakePlanner) ExecutePlan(_ context.Context, plan *models.ExecutionPlan) (map[string]models.TaskResult, error) {
	if p.finalState != "" {
		plan.Status = p.finalState
	}
	return p.results, p.execErr
}

func (p *fakePlanner) CancelPlan(planID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, planID)
	return p.cancelErr
}

func (p *fakePlanner) PlanStatus(string) (*models.ExecutionPlan, error) { return nil, nil }

func (p *fakePlanner) ActivePlans() []*models.ExecutionPlan { return p.active }

func (p *fakePlanner) CompletedPlans() []*models.ExecutionPlan { return nil }

// fakeHistory implements HistoryStore in memory.
type fakeHistory struct {
	mu        sync.Mutex
	records   []models.ExecutionRecord
	appendErr error
	readErr   error
}

func (h *fakeHistory) AppendRecord(rec models.ExecutionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *fakeHistory) Records(limit int) ([]models.ExecutionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readErr != nil {
		return nil, h.readErr
	}
	out := make([]models.ExecutionRecord, len(h.records))
	copy(out, h.records)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeArchive implements PlanArchive in memory.
type fakeArchive struct {
	mu      sync.Mutex
	plans   map[string]*models.ExecutionPlan
	results map[string]map[string]models.TaskResult
	err     error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		plans:   make(map[string]*models.ExecutionPlan),
		results: make(map[string]map[string]models.TaskResult),
	}
}

func (a *fakeArchive) ArchivePlan(plan *models.ExecutionPlan, results map[string]models.TaskResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.plans[plan.ID] = plan
	a.results[plan.ID] = results
	return nil
}

func (a *fakeArchive) ArchivedPlan(planID string) (*models.ExecutionPlan, map[string]models.TaskResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plans[planID], a.results[planID], nil
}

func (a *fakeArchive) ArchivedPlanIDs() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.plans))
	for id := range a.plans {
		ids = append(ids, id)
	}
	return ids, nil
}
