package handler

import (
	"net/http"

	"rejectionlog/internal/middleware"
	"rejectionlog/internal/model"
	"rejectionlog/internal/service"
	"rejectionlog/pkg/pagination"
	"rejectionlog/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audit := router.Group("/audit-logs")
	{
		// The full trail view is for oversight roles; the per-entry trail
		// is visible to anyone who can open the entry.
		audit.GET("", middleware.RequireRole(model.RoleQA, model.RoleHOD, model.RoleAdmin), h.ListAuditLogs)
		audit.GET("/entry/:id", middleware.RequireRole(), h.ListEntryAuditLogs)
	}
}

// ListAuditLogs returns the audit trail across all entries
// @Summary      List audit logs
// @Description  Lists audit records newest first, searchable over action, performer and details
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Search filter"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=pagination.Paged}
// @Router       /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	logs, total, err := h.auditService.List(c.Request.Context(), nil, c.Query("search"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPaged(logs, params, total)))
}

// ListEntryAuditLogs returns the audit trail of one log entry
// @Summary      List entry audit logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Entry ID"
// @Param        page   query     int     false  "Page number"
// @Param        limit  query     int     false  "Page size"
// @Success      200    {object}  response.Response{data=pagination.Paged}
// @Failure      400    {object}  response.Response
// @Router       /audit-logs/entry/{id} [get]
func (h *AuditHandler) ListEntryAuditLogs(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid entry ID"))
		return
	}

	params := pagination.Parse(c)
	logs, total, err := h.auditService.List(c.Request.Context(), &entryID, c.Query("search"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPaged(logs, params, total)))
}
