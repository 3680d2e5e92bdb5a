package workflow

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/application/approver"
	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// memStore backs the mock repositories. The mock transaction manager
// snapshots it and restores the snapshot when fn fails.
type memStore struct {
	mu        sync.Mutex
	workflows map[string]*entity.Workflow
	actions   []*entity.Action
}

func newMemStore() *memStore {
	return &memStore{workflows: make(map[string]*entity.Workflow)}
}

func (s *memStore) snapshot() (map[string]*entity.Workflow, []*entity.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wfs := make(map[string]*entity.Workflow, len(s.workflows))
	for id, wf := range s.workflows {
		wfs[id] = wf.Clone()
	}
	return wfs, append([]*entity.Action(nil), s.actions...)
}

func (s *memStore) restore(wfs map[string]*entity.Workflow, actions []*entity.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = wfs
	s.actions = actions
}

type memTxManager struct {
	store     *memStore
	calls     int
	rollbacks int
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	wfs, actions := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.rollbacks++
		m.store.restore(wfs, actions)
		return err
	}
	return nil
}

type memWorkflowRepo struct {
	store *memStore
	// beforeUpdate runs before the version check, to simulate a racing writer.
	beforeUpdate func(wf *entity.Workflow)
}

func (r *memWorkflowRepo) Create(ctx context.Context, wf *entity.Workflow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.workflows {
		if existing.TravelRequestID == wf.TravelRequestID && existing.WorkflowType == wf.WorkflowType {
			return domainwf.Duplicatef("duplicate workflow")
		}
	}
	wf.Version = 1
	r.store.workflows[wf.ID] = wf.Clone()
	return nil
}

func (r *memWorkflowRepo) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if wf, ok := r.store.workflows[id]; ok {
		return wf.Clone(), nil
	}
	return nil, nil
}

func (r *memWorkflowRepo) GetByRequestAndType(ctx context.Context, travelRequestID, workflowType string) (*entity.Workflow, error) {
	for _, wf := range r.filter(func(wf *entity.Workflow) bool {
		return wf.TravelRequestID == travelRequestID && wf.WorkflowType == workflowType
	}) {
		return wf, nil
	}
	return nil, nil
}

func (r *memWorkflowRepo) ListByRequest(ctx context.Context, travelRequestID string) ([]*entity.Workflow, error) {
	return r.filter(func(wf *entity.Workflow) bool { return wf.TravelRequestID == travelRequestID }), nil
}

func (r *memWorkflowRepo) Update(ctx context.Context, wf *entity.Workflow) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(wf)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.workflows[wf.ID]
	if !ok || stored.Version != wf.Version {
		return domainwf.ErrConcurrentModification
	}
	wf.Version++
	r.store.workflows[wf.ID] = wf.Clone()
	return nil
}

func (r *memWorkflowRepo) ListByStatus(ctx context.Context, status string) ([]*entity.Workflow, error) {
	return r.filter(func(wf *entity.Workflow) bool { return wf.Status == status }), nil
}

func (r *memWorkflowRepo) ListByStatusAndStep(ctx context.Context, status, step string) ([]*entity.Workflow, error) {
	return r.filter(func(wf *entity.Workflow) bool { return wf.Status == status && wf.CurrentStep == step }), nil
}

func (r *memWorkflowRepo) ListPendingByRole(ctx context.Context, role string) ([]*entity.Workflow, error) {
	return r.filter(func(wf *entity.Workflow) bool { return wf.IsPending() && wf.CurrentApproverRole == role }), nil
}

func (r *memWorkflowRepo) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Workflow, error) {
	return r.filter(func(wf *entity.Workflow) bool { return wf.IsPending() && wf.ApproverID() == approverID }), nil
}

func (r *memWorkflowRepo) List(ctx context.Context, limit, offset int) ([]*entity.Workflow, error) {
	all := r.filter(func(*entity.Workflow) bool { return true })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memWorkflowRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, wf := range r.filter(func(*entity.Workflow) bool { return true }) {
		counts[wf.Status]++
	}
	return counts, nil
}

func (r *memWorkflowRepo) filter(keep func(*entity.Workflow) bool) []*entity.Workflow {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Workflow
	for _, wf := range r.store.workflows {
		if keep(wf) {
			out = append(out, wf.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].WorkflowType > out[j].WorkflowType
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type memActionRepo struct {
	store     *memStore
	createErr func(a *entity.Action) error
}

func (r *memActionRepo) Create(ctx context.Context, a *entity.Action) error {
	if r.createErr != nil {
		if err := r.createErr(a); err != nil {
			return err
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *a
	r.store.actions = append(r.store.actions, &c)
	return nil
}

func (r *memActionRepo) ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Action, error) {
	return r.filter(func(a *entity.Action) bool { return a.WorkflowID == workflowID }, false), nil
}

func (r *memActionRepo) ListByRequest(ctx context.Context, travelRequestID string) ([]*entity.Action, error) {
	return r.filter(func(a *entity.Action) bool { return a.TravelRequestID == travelRequestID }, true), nil
}

func (r *memActionRepo) ListByActor(ctx context.Context, approverID string) ([]*entity.Action, error) {
	return r.filter(func(a *entity.Action) bool { return a.ApproverID == approverID }, false), nil
}

func (r *memActionRepo) filter(keep func(*entity.Action) bool, newestFirst bool) []*entity.Action {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Action
	for _, a := range r.store.actions {
		if keep(a) {
			c := *a
			out = append(out, &c)
		}
	}
	if newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

type memStepConfigRepo struct {
	configs []entity.StepConfig
}

func (r *memStepConfigRepo) ListAll(ctx context.Context) ([]entity.StepConfig, error) {
	return append([]entity.StepConfig(nil), r.configs...), nil
}

func (r *memStepConfigRepo) ReplaceAll(ctx context.Context, configs []entity.StepConfig) error {
	r.configs = append([]entity.StepConfig(nil), configs...)
	return nil
}

type mockCatalogSource struct {
	configs []entity.StepConfig
	err     error
}

func (s *mockCatalogSource) Load(ctx context.Context) ([]entity.StepConfig, error) {
	return s.configs, s.err
}

type mockRequestTracker struct {
	mu         sync.Mutex
	requests   map[string]*entity.TravelRequest
	fetchErr   error
	fetchCalls int
	statusErr  error
	statuses   []string
	costs      []float64
}

func (m *mockRequestTracker) FetchRequest(ctx context.Context, id string) (*entity.TravelRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := *req
	return &c, nil
}

func (m *mockRequestTracker) SetRequestStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return m.statusErr
}

func (m *mockRequestTracker) SetActualCost(ctx context.Context, id string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs = append(m.costs, amount)
	return nil
}

type mockDirectory struct {
	employees map[string]*entity.Employee
}

func (m *mockDirectory) FetchEmployee(ctx context.Context, id string) (*entity.Employee, error) {
	if emp, ok := m.employees[id]; ok {
		c := *emp
		return &c, nil
	}
	return nil, nil
}

// recordingDispatcher captures events synchronously
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, string, dispatcher.Handler) {}
func (d *recordingDispatcher) Unsubscribe(event.Type, string)                   {}
func (d *recordingDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo { return nil }
func (d *recordingDispatcher) Close() error                                     { return nil }

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, len(d.events))
	for i, evt := range d.events {
		out[i] = evt.Type
	}
	return out
}

type testLogger struct{}

func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func hours(h int) *int { return &h }

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func stepConfig(workflowType, name, role string, seq int, limit *int) entity.StepConfig {
	return entity.StepConfig{
		WorkflowType:   workflowType,
		StepName:       name,
		ApproverRole:   role,
		SequenceOrder:  seq,
		TimeLimitHours: limit,
		IsActive:       true,
	}
}

func defaultSteps() []entity.StepConfig {
	pre, post := entity.WorkflowTypePreTravel, entity.WorkflowTypePostTravel
	return []entity.StepConfig{
		stepConfig(pre, entity.StepManagerApproval, entity.RoleManager, 1, hours(48)),
		stepConfig(pre, entity.StepTravelDeskCheck, entity.RoleTravelDesk, 2, hours(24)),
		stepConfig(pre, entity.StepFinanceApproval, entity.RoleFinance, 3, nil),
		stepConfig(pre, entity.StepHRApproval, entity.RoleHR, 4, nil),
		stepConfig(pre, entity.StepTravelDeskBooking, entity.RoleTravelDesk, 5, nil),
		stepConfig(pre, entity.StepHRCompliance, entity.RoleHR, 6, nil),
		stepConfig(pre, entity.StepFinanceFinal, entity.RoleFinance, 7, nil),
		stepConfig(post, entity.StepBillUpload, entity.RoleEmployee, 1, hours(168)),
		stepConfig(post, entity.StepTravelDeskBillReview, entity.RoleTravelDesk, 2, nil),
		stepConfig(post, entity.StepFinanceReimbursement, entity.RoleFinance, 3, nil),
		stepConfig(post, entity.StepWorkflowComplete, entity.RoleSystem, 4, nil),
	}
}

type fixture struct {
	engine    *engineImpl
	store     *memStore
	workflows *memWorkflowRepo
	actions   *memActionRepo
	steps     *memStepConfigRepo
	source    *mockCatalogSource
	tx        *memTxManager
	requests  *mockRequestTracker
	events    *recordingDispatcher
	clock     *fakeClock
	catalog   *domainwf.Catalog
}

const (
	testRequestID = "tr-1"
	testEmployee  = "emp-1"
	testManager   = "mgr-1"
)

func newFixture(t *testing.T, configs ...entity.StepConfig) *fixture {
	t.Helper()
	if len(configs) == 0 {
		configs = defaultSteps()
	}

	store := newMemStore()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	f := &fixture{
		store:     store,
		workflows: &memWorkflowRepo{store: store},
		actions:   &memActionRepo{store: store},
		steps:     &memStepConfigRepo{configs: configs},
		source:    &mockCatalogSource{configs: configs},
		tx:        &memTxManager{store: store},
		requests: &mockRequestTracker{requests: map[string]*entity.TravelRequest{
			testRequestID: {
				ID:            testRequestID,
				EmployeeID:    testEmployee,
				StartDate:     &start,
				EndDate:       &end,
				EstimatedCost: floatPtr(1200),
				Purpose:       "Customer workshop",
			},
		}},
		events:  &recordingDispatcher{},
		clock:   &fakeClock{t: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)},
		catalog: domainwf.NewCatalog(configs),
	}

	directory := &mockDirectory{employees: map[string]*entity.Employee{
		testEmployee: {EmployeeID: testEmployee, ManagerID: strPtr(testManager), DisplayName: "Ada Lovelace"},
	}}

	eng, err := NewEngine(Dependencies{
		Workflows:     f.workflows,
		Actions:       f.actions,
		StepConfigs:   f.steps,
		TxManager:     f.tx,
		Requests:      f.requests,
		Resolver:      approver.NewResolver(directory, "", testLogger{}),
		Catalog:       f.catalog,
		CatalogSource: f.source,
	},
		WithDispatcher(f.events),
		WithClock(f.clock.Now),
		WithLogger(testLogger{}),
	)
	require.NoError(t, err)
	f.engine = eng.(*engineImpl)
	return f
}

func (f *fixture) initiate(t *testing.T, cost float64) *entity.Workflow {
	t.Helper()
	wf, err := f.engine.Initiate(context.Background(), InitiateRequest{
		TravelRequestID: testRequestID,
		WorkflowType:    entity.WorkflowTypePreTravel,
		EstimatedCost:   floatPtr(cost),
	})
	require.NoError(t, err)
	return wf
}

// actorFor returns an identity allowed to act on wf's current step.
func actorFor(wf *entity.Workflow) string {
	if id := wf.ApproverID(); id != "" {
		return id
	}
	return "user-" + wf.CurrentApproverRole
}

func (f *fixture) approve(t *testing.T, wf *entity.Workflow, mutate ...func(*ApprovalRequest)) *entity.Workflow {
	t.Helper()
	req := ApprovalRequest{
		WorkflowID:   wf.ID,
		ApproverRole: wf.CurrentApproverRole,
		ApproverID:   actorFor(wf),
		Action:       entity.ActionApprove,
	}
	for _, m := range mutate {
		m(&req)
	}
	next, err := f.engine.ProcessApproval(context.Background(), req)
	require.NoError(t, err)
	return next
}

// approveUntil approves wf until it reaches step.
func (f *fixture) approveUntil(t *testing.T, wf *entity.Workflow, step string) *entity.Workflow {
	t.Helper()
	for i := 0; wf.CurrentStep != step; i++ {
		require.Less(t, i, 12, "workflow never reached %s", step)
		wf = f.approve(t, wf)
	}
	return wf
}

func (f *fixture) stored(t *testing.T, id string) *entity.Workflow {
	t.Helper()
	wf, err := f.workflows.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, wf)
	return wf
}

func (f *fixture) ledger(t *testing.T, workflowID string) []*entity.Action {
	t.Helper()
	actions, err := f.actions.ListByWorkflow(context.Background(), workflowID)
	require.NoError(t, err)
	return actions
}
