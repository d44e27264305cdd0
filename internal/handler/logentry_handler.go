package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rejectionlog/internal/middleware"
	"rejectionlog/internal/model"
	"rejectionlog/internal/service"
	"rejectionlog/internal/workflow"
	"rejectionlog/pkg/pagination"
	"rejectionlog/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LogEntryHandler struct {
	entryService service.LogEntryService
}

func NewLogEntryHandler(entryService service.LogEntryService) *LogEntryHandler {
	return &LogEntryHandler{entryService: entryService}
}

// RegisterRoutes binds the rejection log endpoints to the gin RouterGroup
func (h *LogEntryHandler) RegisterRoutes(router *gin.RouterGroup) {
	entries := router.Group("/log-entries")
	{
		entries.GET("", middleware.RequireRole(), h.ListEntries)
		entries.GET("/export", middleware.RequireRole(), h.ExportEntries)
		entries.POST("", middleware.RequireRole(model.RoleProduction, model.RoleHOD), h.CreateEntry)
		entries.GET("/:id", middleware.RequireRole(), h.GetEntry)
		entries.PUT("/:id", middleware.RequireRole(), h.SaveStage)
		entries.POST("/:id/approve", middleware.RequireRole(model.RoleQA), h.ApproveEntry)
		entries.POST("/:id/reject", middleware.RequireRole(model.RoleQA), h.RejectEntry)
		entries.POST("/:id/reopen", middleware.RequireRole(model.RoleHOD), h.ReopenEntry)
	}
}

// CreateEntry opens a new rejection log entry
// @Summary      Create rejection log entry
// @Description  Opens a new rejection log entry. Production creators must fill and confirm their own stage; HOD creators assign both stages.
// @Tags         log-entries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateLogEntryRequest  true  "Create Entry Payload"
// @Success      201      {object}  response.Response{data=model.LogEntry}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /log-entries [post]
func (h *LogEntryHandler) CreateEntry(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}

	var req service.CreateLogEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	entry, err := h.entryService.Create(c.Request.Context(), actorID, req)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// ListEntries returns the entries visible to the caller
// @Summary      List rejection log entries
// @Description  Lists entries scoped to the caller's role, filtered by tab, status, search and date range
// @Tags         log-entries
// @Produce      json
// @Security     BearerAuth
// @Param        tab        query     string  false  "Tab filter"  Enums(all, my-tasks, pending, approved, rejected, variations)
// @Param        status     query     string  false  "Exact status filter"
// @Param        search     query     string  false  "Search over product name, batch and poly bag numbers"
// @Param        date_from  query     string  false  "Start date (YYYY-MM-DD)"
// @Param        date_to    query     string  false  "End date (YYYY-MM-DD)"
// @Param        page       query     int     false  "Page number"
// @Param        limit      query     int     false  "Page size"
// @Success      200        {object}  response.Response{data=pagination.Paged}
// @Failure      401        {object}  response.Response
// @Router       /log-entries [get]
func (h *LogEntryHandler) ListEntries(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}

	params := pagination.Parse(c)
	req := service.ListLogEntriesRequest{
		Tab:      c.DefaultQuery("tab", "all"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Page:     params.Page,
		Limit:    params.Limit,
	}

	entries, total, err := h.entryService.List(c.Request.Context(), actorID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPaged(entries, params, total)))
}

// ExportEntries streams the caller's visible entries as a CSV file
// @Summary      Export rejection log entries
// @Description  Exports the filtered entry list as CSV with the fixed register layout
// @Tags         log-entries
// @Produce      text/csv
// @Security     BearerAuth
// @Param        tab        query  string  false  "Tab filter"
// @Param        search     query  string  false  "Search filter"
// @Param        date_from  query  string  false  "Start date (YYYY-MM-DD)"
// @Param        date_to    query  string  false  "End date (YYYY-MM-DD)"
// @Success      200  {string}  string  "CSV payload"
// @Failure      401  {object}  response.Response
// @Router       /log-entries/export [get]
func (h *LogEntryHandler) ExportEntries(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}

	req := service.ListLogEntriesRequest{
		Tab:      c.DefaultQuery("tab", "all"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		// Limit 0 disables paging so the export covers the full filtered set.
	}

	entries, _, err := h.entryService.List(c.Request.Context(), actorID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	filename := fmt.Sprintf("rejection-log-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := service.WriteLogEntriesCSV(c.Writer, entries); err != nil {
		// Headers are already out; nothing sensible left to send.
		_ = c.Error(err)
	}
}

// GetEntry returns one entry plus the actions the caller may take on it
// @Summary      Get rejection log entry
// @Tags         log-entries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  response.Response{data=service.LogEntryDetail}
// @Failure      404  {object}  response.Response
// @Router       /log-entries/{id} [get]
func (h *LogEntryHandler) GetEntry(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	detail, err := h.entryService.GetByID(c.Request.Context(), actorID, entryID)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// SaveStage writes the caller's stage fields on an entry
// @Summary      Save stage data
// @Description  Saves the fields of whichever stage the caller owns; confirming a stage advances the entry's status
// @Tags         log-entries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Entry ID"
// @Param        payload  body      service.SaveStageRequest  true  "Stage Payload"
// @Success      200      {object}  response.Response{data=model.LogEntry}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /log-entries/{id} [put]
func (h *LogEntryHandler) SaveStage(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	var req service.SaveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.entryService.SaveStage(c.Request.Context(), actorID, entryID, req)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// ApproveEntry records an approving QA sign-off
// @Summary      Approve entry
// @Description  Records the QA approval decision. Remarks are mandatory.
// @Tags         log-entries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Entry ID"
// @Param        payload  body      service.SignOffRequest  true  "Sign-off Payload"
// @Success      200      {object}  response.Response{data=model.LogEntry}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /log-entries/{id}/approve [post]
func (h *LogEntryHandler) ApproveEntry(c *gin.Context) {
	h.signOff(c, "Entry approved", h.entryService.Approve)
}

// RejectEntry records a rejecting QA sign-off
// @Summary      Reject entry
// @Description  Records the QA rejection decision. Remarks are mandatory.
// @Tags         log-entries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Entry ID"
// @Param        payload  body      service.SignOffRequest  true  "Sign-off Payload"
// @Success      200      {object}  response.Response{data=model.LogEntry}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /log-entries/{id}/reject [post]
func (h *LogEntryHandler) RejectEntry(c *gin.Context) {
	h.signOff(c, "Entry rejected", h.entryService.Reject)
}

func (h *LogEntryHandler) signOff(
	c *gin.Context,
	message string,
	decide func(ctx context.Context, actorID, entryID uuid.UUID, qaRemarks string) (*model.LogEntry, error),
) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	var req service.SignOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := decide(c.Request.Context(), actorID, entryID, req.QARemarks)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, message, entry))
}

// ReopenEntry puts a signed-off entry back under HOD control
// @Summary      Reopen entry
// @Description  Reopens an approved or rejected entry for correction. HOD only.
// @Tags         log-entries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  response.Response{data=model.LogEntry}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /log-entries/{id}/reopen [post]
func (h *LogEntryHandler) ReopenEntry(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	entry, err := h.entryService.Reopen(c.Request.Context(), actorID, entryID)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Entry reopened", entry))
}

// writeWorkflowError maps workflow and lookup errors to HTTP statuses.
func writeWorkflowError(c *gin.Context, err error) {
	var verr *workflow.ValidationError
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, workflow.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, workflow.ErrNoEditableStage):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest,
			"Missing or invalid fields: "+strings.Join(verr.Fields, ", ")))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}
