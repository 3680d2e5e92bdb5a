package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

func TestGetWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.initiate(t, 1000)

	got, err := f.engine.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)

	_, err = f.engine.GetWorkflow(ctx, "nope")
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))
	_, err = f.engine.GetWorkflow(ctx, "")
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	byReq, err := f.engine.GetWorkflowByRequest(ctx, testRequestID, "pre_travel")
	require.NoError(t, err)
	assert.Equal(t, wf.ID, byReq.ID)

	first, err := f.engine.GetWorkflowByRequest(ctx, testRequestID, "")
	require.NoError(t, err)
	assert.Equal(t, wf.ID, first.ID)

	_, err = f.engine.GetWorkflowByRequest(ctx, testRequestID, entity.WorkflowTypePostTravel)
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))
}

func TestPendingApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.initiate(t, 1000)

	mine, err := f.engine.PendingApprovals(ctx, "", testManager)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, wf.ID, mine[0].ID)

	f.approve(t, wf)

	desk, err := f.engine.PendingApprovals(ctx, "travel_desk", "")
	require.NoError(t, err)
	assert.Len(t, desk, 1)

	mine, err = f.engine.PendingApprovals(ctx, "", testManager)
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = f.engine.PendingApprovals(ctx, "", "")
	assert.True(t, errors.Is(err, domainwf.ErrValidation))
}

func TestWorkflowsByStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.approve(t, f.initiate(t, 1000))

	pending, err := f.engine.WorkflowsByStatus(ctx, "pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	atDesk, err := f.engine.WorkflowsByStatusAndStep(ctx, entity.StatusPending, entity.StepTravelDeskCheck)
	require.NoError(t, err)
	require.Len(t, atDesk, 1)
	assert.Equal(t, wf.ID, atDesk[0].ID)

	_, err = f.engine.WorkflowsByStatus(ctx, "WAITING")
	assert.True(t, errors.Is(err, domainwf.ErrValidation))
}

func TestHistory_NewestFirstAcrossWorkflows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.approveUntil(t, f.initiate(t, 1000), entity.StepFinanceFinal)
	f.approve(t, wf)

	history, err := f.engine.History(ctx, testRequestID)
	require.NoError(t, err)
	require.NotEmpty(t, history)

	assert.Equal(t, entity.ActionSubmit, history[0].Action)
	assert.Equal(t, "POST_TRAVEL workflow initiated", history[0].Comments)
	assert.Equal(t, entity.ActionApprove, history[1].Action)
	assert.Equal(t, entity.StepFinanceFinal, history[1].Step)
	assert.Equal(t, "PRE_TRAVEL workflow initiated", history[len(history)-1].Comments)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	empty, err := f.engine.Metrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalWorkflows)
	assert.Zero(t, empty.AverageApprovalTime)

	wf := f.approveUntil(t, f.initiate(t, 1000), entity.StepFinanceFinal)
	f.clock.Advance(50*time.Hour + 30*time.Minute)
	f.approve(t, wf)

	m, err := f.engine.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.TotalWorkflows)
	assert.Equal(t, int64(1), m.ApprovedWorkflows)
	assert.Equal(t, int64(1), m.PendingWorkflows)
	assert.Equal(t, 50.0, m.AverageApprovalTime)
}

func TestApproverStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.initiate(t, 1000)

	stats, err := f.engine.ApproverStats(ctx, testManager)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Zero(t, stats.Approved)

	f.clock.Advance(6 * time.Hour)
	f.approve(t, wf)

	stats, err = f.engine.ApproverStats(ctx, testManager)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Equal(t, int64(1), stats.Approved)
	assert.Equal(t, int64(1), stats.TotalAssigned)
	assert.InDelta(t, 6.0, stats.AverageProcessingTime, 0.001)
}

func TestReloadCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.Equal(t, int64(1), f.catalog.Revision())

	extended := append(defaultSteps(),
		stepConfig("CONFERENCE", entity.StepManagerApproval, entity.RoleManager, 1, nil))
	f.source.configs = extended

	rev, err := f.engine.ReloadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
	assert.Contains(t, f.catalog.WorkflowTypes(), "CONFERENCE")
	assert.Len(t, f.steps.configs, len(extended))

	f.source.configs = []entity.StepConfig{
		stepConfig(entity.WorkflowTypePreTravel, "A", entity.RoleHR, 1, nil),
		stepConfig(entity.WorkflowTypePreTravel, "A", entity.RoleHR, 2, nil),
	}
	_, err = f.engine.ReloadCatalog(ctx)
	assert.True(t, errors.Is(err, domainwf.ErrConfiguration))
	assert.Equal(t, int64(2), f.catalog.Revision(), "a rejected reload keeps the previous snapshot")
	assert.Len(t, f.steps.configs, len(extended))

	f.source.err = errors.New("file missing")
	_, err = f.engine.ReloadCatalog(ctx)
	assert.True(t, errors.Is(err, domainwf.ErrConfiguration))
}

func TestReloadCatalog_InFlightWorkflowsKeepRouting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.initiate(t, 1000)

	// The reload drops TRAVEL_DESK_CHECK; the running workflow still routes
	// by name against whatever the catalog holds when it advances.
	var configs []entity.StepConfig
	for _, c := range defaultSteps() {
		if c.StepName != entity.StepTravelDeskCheck {
			configs = append(configs, c)
		}
	}
	f.source.configs = configs
	_, err := f.engine.ReloadCatalog(ctx)
	require.NoError(t, err)

	next := f.approve(t, wf)
	assert.Equal(t, entity.StepFinanceApproval, next.CurrentStep)
}

type routedCatalogSource struct {
	mockCatalogSource
	routes []domainwf.Route
}

func (s *routedCatalogSource) Routes() ([]domainwf.Route, error) {
	return s.routes, nil
}

func TestReloadCatalog_ReplacesRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pre := entity.WorkflowTypePreTravel
	source := &routedCatalogSource{
		mockCatalogSource: mockCatalogSource{configs: defaultSteps()},
		routes: []domainwf.Route{
			{WorkflowType: pre, From: entity.StepManagerApproval, To: entity.StepHRApproval},
		},
	}
	f.engine.source = source

	_, err := f.engine.ReloadCatalog(ctx)
	require.NoError(t, err)

	wf := f.initiate(t, 1000)
	next := f.approve(t, wf)
	assert.Equal(t, entity.StepHRApproval, next.CurrentStep)

	source.routes = []domainwf.Route{
		{WorkflowType: pre, From: entity.StepHRApproval, When: "estimatedCost >", To: entity.StepFinanceFinal},
	}
	_, err = f.engine.ReloadCatalog(ctx)
	assert.True(t, errors.Is(err, domainwf.ErrConfiguration))
	assert.Equal(t, int64(2), f.catalog.Revision(), "a rejected route table keeps the previous snapshot")

	// HR_APPROVAL has no route in the kept table, so it advances positionally.
	after := f.approve(t, next)
	assert.Equal(t, entity.StepTravelDeskBooking, after.CurrentStep)
}

