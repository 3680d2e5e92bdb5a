package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-approval/internal/application/service"
	wfapp "github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// NotificationLister reads the outbox for a workflow
type NotificationLister interface {
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Notification, error)
}

// Dependencies are the application services behind the API
type Dependencies struct {
	Engine        wfapp.Engine
	Reports       service.ReportService
	Notifications NotificationLister
	// Health reports component failures; nil means always healthy.
	Health  func(ctx context.Context) map[string]error
	Version string
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine        wfapp.Engine
	reports       service.ReportService
	notifications NotificationLister
	health        func(ctx context.Context) map[string]error
	version       string
	logger        Logger
}

func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		engine:        deps.Engine,
		reports:       deps.Reports,
		notifications: deps.Notifications,
		health:        deps.Health,
		version:       deps.Version,
		logger:        logger,
	}
}

// Response is the JSON envelope of every endpoint
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

type escalateBody struct {
	Reason      string `json:"reason" binding:"required"`
	EscalatedBy string `json:"escalated_by" binding:"required"`
}

type priorityBody struct {
	Priority  string `json:"priority" binding:"required"`
	UpdatedBy string `json:"updated_by" binding:"required"`
}

type bookingStepBody struct {
	ActorID  string `json:"actor_id" binding:"required"`
	Comments string `json:"comments"`
}

type bookingActionBody struct {
	ActorID  string `json:"actor_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

type bookingDetailsBody struct {
	ActorID        string                 `json:"actor_id" binding:"required"`
	BookingDetails *entity.BookingDetails `json:"booking_details" binding:"required"`
	Comments       string                 `json:"comments"`
}

type addBookingBody struct {
	ActorID string         `json:"actor_id" binding:"required"`
	Booking entity.Booking `json:"booking"`
}

type bookingStatusBody struct {
	ActorID string `json:"actor_id" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

type reloadResponse struct {
	Revision int64 `json:"revision"`
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind domainwf.Kind) int {
	switch kind {
	case domainwf.KindNotFound:
		return http.StatusNotFound
	case domainwf.KindDuplicateWorkflow, domainwf.KindInvalidState:
		return http.StatusConflict
	case domainwf.KindAuthorization:
		return http.StatusForbidden
	case domainwf.KindInvalidAction, domainwf.KindValidation:
		return http.StatusBadRequest
	case domainwf.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	kind := domainwf.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if kind == domainwf.KindInternal {
		message = "internal error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "kind", kind, "error", err)
	} else {
		h.logger.Warn("Request rejected", "method", c.Request.Method, "path", c.FullPath(), "kind", kind, "error", err)
	}

	c.JSON(status, Response{
		Success:   false,
		Error:     message,
		ErrorKind: string(kind),
	})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.fail(c, domainwf.Validationf("invalid request: %v", err))
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}
	status := http.StatusOK

	if h.health != nil {
		if failures := h.health(c.Request.Context()); len(failures) > 0 {
			resp.Status = "degraded"
			resp.Components = make(map[string]string, len(failures))
			for name, err := range failures {
				resp.Components[name] = err.Error()
			}
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// InitiateWorkflow handles POST /api/v1/workflows
func (h *Handlers) InitiateWorkflow(c *gin.Context) {
	var req wfapp.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Initiate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, wf)
}

// GetWorkflow handles GET /api/v1/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.engine.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// ListWorkflows handles GET /api/v1/workflows?status=&step=&limit=&offset=.
// Without a status it pages over all workflows.
func (h *Handlers) ListWorkflows(c *gin.Context) {
	ctx := c.Request.Context()
	status := c.Query("status")
	step := c.Query("step")

	var (
		workflows []*entity.Workflow
		err       error
	)
	switch {
	case status != "" && step != "":
		workflows, err = h.engine.WorkflowsByStatusAndStep(ctx, status, step)
	case status != "":
		workflows, err = h.engine.WorkflowsByStatus(ctx, status)
	case step != "":
		err = domainwf.Validationf("step filter requires a status")
	default:
		limit, offset, perr := pagination(c)
		if perr != nil {
			h.badRequest(c, perr)
			return
		}
		workflows, err = h.engine.ListWorkflows(ctx, limit, offset)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if workflows == nil {
		workflows = []*entity.Workflow{}
	}
	ok(c, http.StatusOK, workflows)
}

func pagination(c *gin.Context) (int, int, error) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
		offset = n
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

// GetWorkflowByRequest handles GET /api/v1/requests/:requestId/workflow?type=
func (h *Handlers) GetWorkflowByRequest(c *gin.Context) {
	wf, err := h.engine.GetWorkflowByRequest(c.Request.Context(), c.Param("requestId"), c.Query("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// History handles GET /api/v1/requests/:requestId/history
func (h *Handlers) History(c *gin.Context) {
	actions, err := h.engine.History(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if actions == nil {
		actions = []*entity.Action{}
	}
	ok(c, http.StatusOK, actions)
}

// ProcessApproval handles POST /api/v1/workflows/:id/actions
func (h *Handlers) ProcessApproval(c *gin.Context) {
	var req wfapp.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.WorkflowID = c.Param("id")

	wf, err := h.engine.ProcessApproval(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// Escalate handles POST /api/v1/workflows/:id/escalate
func (h *Handlers) Escalate(c *gin.Context) {
	var body escalateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Escalate(c.Request.Context(), c.Param("id"), body.Reason, body.EscalatedBy)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// Reassign handles POST /api/v1/workflows/:id/reassign
func (h *Handlers) Reassign(c *gin.Context) {
	var req wfapp.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.WorkflowID = c.Param("id")

	wf, err := h.engine.Reassign(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// UpdatePriority handles PUT /api/v1/workflows/:id/priority
func (h *Handlers) UpdatePriority(c *gin.Context) {
	var body priorityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.UpdatePriority(c.Request.Context(), c.Param("id"), body.Priority, body.UpdatedBy)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// ListNotifications handles GET /api/v1/workflows/:id/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	if h.notifications == nil {
		ok(c, http.StatusOK, []*entity.Notification{})
		return
	}
	list, err := h.notifications.ListByWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []*entity.Notification{}
	}
	ok(c, http.StatusOK, list)
}

// PendingApprovals handles GET /api/v1/approvals/pending?role=&approverId=
func (h *Handlers) PendingApprovals(c *gin.Context) {
	workflows, err := h.engine.PendingApprovals(c.Request.Context(), c.Query("role"), c.Query("approverId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if workflows == nil {
		workflows = []*entity.Workflow{}
	}
	ok(c, http.StatusOK, workflows)
}

// ApproverStats handles GET /api/v1/approvers/:id/stats
func (h *Handlers) ApproverStats(c *gin.Context) {
	stats, err := h.engine.ApproverStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}

// Metrics handles GET /api/v1/metrics
func (h *Handlers) Metrics(c *gin.Context) {
	metrics, err := h.engine.Metrics(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, metrics)
}

// WorkflowReport handles GET /api/v1/reports/workflows.xlsx
func (h *Handlers) WorkflowReport(c *gin.Context) {
	if h.reports == nil {
		h.fail(c, domainwf.Configurationf("reporting is not enabled"))
		return
	}

	// Render fully before writing headers so a failure still gets the JSON envelope.
	var buf bytes.Buffer
	if err := h.reports.WriteWorkflowReport(c.Request.Context(), &buf); err != nil {
		h.fail(c, err)
		return
	}

	filename := "workflows-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ReloadCatalog handles POST /api/v1/admin/catalog/reload
func (h *Handlers) ReloadCatalog(c *gin.Context) {
	revision, err := h.engine.ReloadCatalog(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("Step catalog reloaded", "revision", revision)
	ok(c, http.StatusOK, reloadResponse{Revision: revision})
}

// MarkBookingUploaded handles POST /api/v1/workflows/:id/bookings/uploaded
func (h *Handlers) MarkBookingUploaded(c *gin.Context) {
	var body bookingStepBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.MarkBookingUploaded(c.Request.Context(), c.Param("id"), body.ActorID, body.Comments)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// MarkBookingCompleted handles POST /api/v1/workflows/:id/bookings/complete
func (h *Handlers) MarkBookingCompleted(c *gin.Context) {
	var body bookingStepBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.MarkBookingCompleted(c.Request.Context(), c.Param("id"), body.ActorID, body.Comments)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// RecordBookingAction handles POST /api/v1/workflows/:id/bookings/actions
func (h *Handlers) RecordBookingAction(c *gin.Context) {
	var body bookingActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	action, err := h.engine.RecordBookingAction(c.Request.Context(), c.Param("id"), body.ActorID, body.Action, body.Comments)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, action)
}

// UpdateBookingDetails handles PUT /api/v1/workflows/:id/bookings
func (h *Handlers) UpdateBookingDetails(c *gin.Context) {
	var body bookingDetailsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.UpdateBookingDetails(c.Request.Context(), c.Param("id"), body.ActorID, body.BookingDetails, body.Comments)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// AddBooking handles POST /api/v1/workflows/:id/bookings/items
func (h *Handlers) AddBooking(c *gin.Context) {
	var body addBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.engine.AddBooking(c.Request.Context(), c.Param("id"), body.ActorID, body.Booking)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, booking)
}

// ListBookings handles GET /api/v1/workflows/:id/bookings/items
func (h *Handlers) ListBookings(c *gin.Context) {
	bookings, err := h.engine.Bookings(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if bookings == nil {
		bookings = []entity.Booking{}
	}
	ok(c, http.StatusOK, bookings)
}

// UpdateBooking handles PUT /api/v1/workflows/:id/bookings/items/:bookingId
func (h *Handlers) UpdateBooking(c *gin.Context) {
	var body addBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.engine.UpdateBooking(c.Request.Context(), c.Param("id"), body.ActorID, c.Param("bookingId"), body.Booking)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, booking)
}

// UpdateBookingStatus handles PATCH /api/v1/workflows/:id/bookings/items/:bookingId/status
func (h *Handlers) UpdateBookingStatus(c *gin.Context) {
	var body bookingStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.engine.UpdateBookingStatus(c.Request.Context(), c.Param("id"), body.ActorID, c.Param("bookingId"), body.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, booking)
}

// DeleteBooking handles DELETE /api/v1/workflows/:id/bookings/items/:bookingId?actorId=
func (h *Handlers) DeleteBooking(c *gin.Context) {
	actorID := c.Query("actorId")
	if actorID == "" {
		h.badRequest(c, errors.New("actorId is required"))
		return
	}

	wf, err := h.engine.DeleteBooking(c.Request.Context(), c.Param("id"), actorID, c.Param("bookingId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// BookingSummary handles GET /api/v1/workflows/:id/bookings/summary
func (h *Handlers) BookingSummary(c *gin.Context) {
	summary, err := h.engine.BookingSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// BookingStats handles GET /api/v1/workflows/:id/bookings/stats
func (h *Handlers) BookingStats(c *gin.Context) {
	stats, err := h.engine.BookingStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}

// UploadBills handles POST /api/v1/workflows/:id/bills
func (h *Handlers) UploadBills(c *gin.Context) {
	var req wfapp.UploadBillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.WorkflowID = c.Param("id")

	wf, err := h.engine.UploadBills(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}
