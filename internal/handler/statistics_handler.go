package handler

import (
	"net/http"

	"rejectionlog/internal/middleware"
	"rejectionlog/internal/repository"
	"rejectionlog/internal/service"
	"rejectionlog/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statsService service.StatisticsService
	users        repository.UserRepository
}

func NewStatisticsHandler(statsService service.StatisticsService, users repository.UserRepository) *StatisticsHandler {
	return &StatisticsHandler{statsService: statsService, users: users}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/statistics/dashboard", middleware.RequireRole(), h.GetDashboardStats)
}

// GetDashboardStats returns the dashboard tiles for the calling user
// @Summary      Dashboard statistics
// @Description  Returns entry counts scoped to the caller's role visibility, plus task and completion figures
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.DashboardStats}
// @Failure      401  {object}  response.Response
// @Router       /statistics/dashboard [get]
func (h *StatisticsHandler) GetDashboardStats(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authenticated user"))
		return
	}

	viewer, err := h.users.GetByID(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found"))
		return
	}

	stats, err := h.statsService.GetDashboardStats(c.Request.Context(), *viewer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
