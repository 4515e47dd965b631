package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/application/service"
	"github.com/garyjia/credit-approvals/internal/application/workflow"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine        workflow.WorkflowEngine
	ruleService   service.RuleService
	publisher     port.EventPublisher
	health        HealthChecker
	webhookSecret string
	logger        Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(
	engine workflow.WorkflowEngine,
	ruleService service.RuleService,
	publisher port.EventPublisher,
	health HealthChecker,
	webhookSecret string,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:        engine,
		ruleService:   ruleService,
		publisher:     publisher,
		health:        health,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database,omitempty"`
}

// OperatorResponse describes a rule operator
type OperatorResponse struct {
	Value      rule.Operator `json:"value"`
	Label      string        `json:"label"`
	NeedsValue bool          `json:"needs_value"`
}

// ActorRequest identifies the agent performing an action
type ActorRequest struct {
	ID       string   `json:"id" binding:"required"`
	Name     string   `json:"name"`
	GroupIDs []string `json:"group_ids"`
}

func (a ActorRequest) toActor() entity.Actor {
	return entity.Actor{ID: a.ID, Name: a.Name, GroupIDs: a.GroupIDs}
}

// ActionRequest is the body of approve and next-level requests
type ActionRequest struct {
	Actor ActorRequest `json:"actor" binding:"required"`
}

// DeclineRequest is the body of a decline request
type DeclineRequest struct {
	Actor  ActorRequest `json:"actor" binding:"required"`
	Reason string       `json:"reason"`
}

// TicketSavedRequest is the body sent by the ticket saved webhook
type TicketSavedRequest struct {
	TicketID json.Number `json:"ticket_id"`
}

// ImportResponse reports the outcome of a workbook import
type ImportResponse struct {
	Imported int  `json:"imported"`
	Replaced bool `json:"replaced"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		if err := h.health.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Database = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   "database unavailable",
			})
			return
		}
		response.Database = "ok"
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// ListOperators handles GET /api/v1/operators
func (h *Handlers) ListOperators(c *gin.Context) {
	ops := rule.AllOperators()
	out := make([]OperatorResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, OperatorResponse{Value: op, Label: op.Label(), NeedsValue: op.NeedsValue()})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// ListRules handles GET /api/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.ruleService.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "failed to retrieve rules")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rules})
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	r, err := h.ruleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to retrieve rule")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: r})
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, "invalid rule body", err)
		return
	}
	r.ID = ""

	if err := h.ruleService.Create(c.Request.Context(), &r); err != nil {
		h.writeError(c, err, "failed to create rule")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: r})
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, "invalid rule body", err)
		return
	}

	id := c.Param("id")
	if err := h.ruleService.Update(c.Request.Context(), id, &r); err != nil {
		h.writeError(c, err, "failed to update rule")
		return
	}
	r.ID = id
	c.JSON(http.StatusOK, Response{Success: true, Data: r})
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.ruleService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "failed to delete rule")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ExportRules handles GET /api/v1/rules/export
func (h *Handlers) ExportRules(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.ruleService.Export(c.Request.Context(), &buf); err != nil {
		h.writeError(c, err, "failed to export rules")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="approval_rules.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ImportRules handles POST /api/v1/rules/import
func (h *Handlers) ImportRules(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "a workbook file is required", err)
		return
	}
	f, err := file.Open()
	if err != nil {
		h.writeError(c, err, "failed to read upload")
		return
	}
	defer f.Close()

	replace := c.Query("replace") == "true"
	n, err := h.ruleService.Import(c.Request.Context(), f, replace)
	if err != nil {
		h.writeError(c, err, "failed to import rules")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: ImportResponse{Imported: n, Replaced: replace}})
}

// LoadRequest handles POST /api/v1/requests/:id/load
func (h *Handlers) LoadRequest(c *gin.Context) {
	ctrl, err := h.engine.Attach(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to load request")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ctrl.State()})
}

// GetEvaluation handles GET /api/v1/requests/:id/evaluation
func (h *Handlers) GetEvaluation(c *gin.Context) {
	actor := entity.Actor{ID: c.Query("actor_id")}
	if groups := c.Query("actor_groups"); groups != "" {
		for _, g := range strings.Split(groups, ",") {
			if g = strings.TrimSpace(g); g != "" {
				actor.GroupIDs = append(actor.GroupIDs, g)
			}
		}
	}

	preview, err := h.engine.Preview(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.writeError(c, err, "failed to evaluate request")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: preview})
}

// Approve handles POST /api/v1/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "an actor is required", err)
		return
	}

	id := c.Param("id")
	if err := h.engine.Approve(c.Request.Context(), id, req.Actor.toActor()); err != nil {
		h.writeError(c, err, "failed to approve request")
		return
	}
	h.respondState(c, id)
}

// Decline handles POST /api/v1/requests/:id/decline
func (h *Handlers) Decline(c *gin.Context) {
	var req DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "an actor is required", err)
		return
	}

	id := c.Param("id")
	if err := h.engine.Decline(c.Request.Context(), id, req.Actor.toActor(), req.Reason); err != nil {
		h.writeError(c, err, "failed to decline request")
		return
	}
	h.respondState(c, id)
}

// AssignNextLevel handles POST /api/v1/requests/:id/next-level
func (h *Handlers) AssignNextLevel(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "an actor is required", err)
		return
	}

	id := c.Param("id")
	if err := h.engine.AssignNextLevel(c.Request.Context(), id, req.Actor.toActor()); err != nil {
		h.writeError(c, err, "failed to assign next level")
		return
	}
	h.respondState(c, id)
}

// GetHistory handles GET /api/v1/requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to retrieve history")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// TicketSaved handles POST /webhooks/ticket-saved
func (h *Handlers) TicketSaved(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader("X-Webhook-Token") != h.webhookSecret {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "invalid webhook token"})
		return
	}

	var req TicketSavedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TicketID == "" {
		h.badRequest(c, "ticket_id is required", err)
		return
	}

	evt := event.NewEvent(event.TypeRecordSaved, req.TicketID.String(), nil)
	h.publisher.DispatchAsync(context.WithoutCancel(c.Request.Context()), evt)

	h.logger.Info("Ticket saved notification received", "request_id", evt.RequestID, "event_id", evt.ID)
	c.JSON(http.StatusAccepted, Response{Success: true, Data: gin.H{"event_id": evt.ID}})
}

func (h *Handlers) respondState(c *gin.Context, requestID string) {
	ctrl, err := h.engine.Attach(c.Request.Context(), requestID)
	if err != nil {
		c.JSON(http.StatusOK, Response{Success: true})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ctrl.State()})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		h.logger.Error("Invalid request", "path", c.FullPath(), "error", err)
	}
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// writeError maps domain errors to status codes. Rejections are shown as-is;
// unexpected failures get the generic message.
func (h *Handlers) writeError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.FullPath(), "error", err)
		c.JSON(status, Response{Success: false, Error: msg})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrReasonRequired),
		errors.Is(err, service.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrLevelNotFound),
		errors.Is(err, workflow.ErrActionInFlight),
		errors.Is(err, workflow.ErrStatusTampered),
		errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrGuardFailed):
		return http.StatusConflict
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
