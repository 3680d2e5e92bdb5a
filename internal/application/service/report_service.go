package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const (
	workflowsSheet = "Workflows"
	metricsSheet   = "Metrics"
	reportPageSize = 500
	reportTimeFmt  = "2006-01-02 15:04"
)

// WorkflowSource is the read side the report is built from
type WorkflowSource interface {
	ListWorkflows(ctx context.Context, limit, offset int) ([]*entity.Workflow, error)
	Metrics(ctx context.Context) (*entity.WorkflowMetrics, error)
}

// ReportService exports workflows as an xlsx workbook
type ReportService interface {
	WriteWorkflowReport(ctx context.Context, w io.Writer) error
}

type reportServiceImpl struct {
	source WorkflowSource
	logger Logger
}

func NewReportService(source WorkflowSource, logger Logger) ReportService {
	return &reportServiceImpl{source: source, logger: logger}
}

var workflowHeader = []interface{}{
	"Workflow ID", "Travel Request ID", "Type", "Status", "Current Step", "Approver Role",
	"Approver ID", "Priority", "Estimated Cost", "Actual Cost", "Booking Total",
	"Overpriced", "Due Date", "Created At", "Completed At",
}

// WriteWorkflowReport writes a workbook with one row per workflow and a
// metrics summary sheet.
func (s *reportServiceImpl) WriteWorkflowReport(ctx context.Context, w io.Writer) error {
	workflows, err := s.allWorkflows(ctx)
	if err != nil {
		return err
	}
	metrics, err := s.source.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to load metrics: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", workflowsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := file.NewSheet(metricsSheet); err != nil {
		return fmt.Errorf("failed to create metrics sheet: %w", err)
	}

	if err := s.fillWorkflows(file, workflows); err != nil {
		return fmt.Errorf("failed to fill workflows: %w", err)
	}
	if err := s.fillMetrics(file, metrics); err != nil {
		return fmt.Errorf("failed to fill metrics: %w", err)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Info("Workflow report generated", "workflow_count", len(workflows))
	return nil
}

func (s *reportServiceImpl) allWorkflows(ctx context.Context) ([]*entity.Workflow, error) {
	var all []*entity.Workflow
	for offset := 0; ; offset += reportPageSize {
		page, err := s.source.ListWorkflows(ctx, reportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows: %w", err)
		}
		all = append(all, page...)
		if len(page) < reportPageSize {
			return all, nil
		}
	}
}

func (s *reportServiceImpl) fillWorkflows(file *excelize.File, workflows []*entity.Workflow) error {
	if err := file.SetSheetRow(workflowsSheet, "A1", &workflowHeader); err != nil {
		return err
	}
	for i, wf := range workflows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			wf.ID,
			wf.TravelRequestID,
			wf.WorkflowType,
			wf.Status,
			wf.CurrentStep,
			wf.CurrentApproverRole,
			wf.ApproverID(),
			wf.Priority,
			floatCell(wf.EstimatedCost),
			floatCell(wf.ActualCost),
			wf.TotalBookingAmount,
			wf.IsOverpriced,
			timeCell(wf.DueDate),
			wf.CreatedAt.Format(reportTimeFmt),
			timeCell(wf.CompletedAt),
		}
		if err := file.SetSheetRow(workflowsSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (s *reportServiceImpl) fillMetrics(file *excelize.File, m *entity.WorkflowMetrics) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total", m.TotalWorkflows},
		{"Pending", m.PendingWorkflows},
		{"Approved", m.ApprovedWorkflows},
		{"Rejected", m.RejectedWorkflows},
		{"Returned", m.ReturnedWorkflows},
		{"Escalated", m.EscalatedWorkflows},
		{"Completed", m.CompletedWorkflows},
		{"Average Approval Hours", m.AverageApprovalTime},
	}
	for i := range rows {
		if err := file.SetSheetRow(metricsSheet, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(reportTimeFmt)
}
