package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uthutho/admin-api/internal/dto"
	"github.com/uthutho/admin-api/internal/models"
	appErrors "github.com/uthutho/admin-api/pkg/errors"
	"github.com/uthutho/admin-api/pkg/response"
)

type routeStopService interface {
	List(ctx context.Context, routeID string) ([]models.RouteStop, error)
	Move(ctx context.Context, routeID, stopID string, direction dto.MoveDirection) ([]models.RouteStop, error)
}

// RouteStopHandler exposes stop ordering for routes.
type RouteStopHandler struct {
	service routeStopService
}

// NewRouteStopHandler builds a new handler.
func NewRouteStopHandler(service routeStopService) *RouteStopHandler {
	return &RouteStopHandler{service: service}
}

// List godoc
// @Summary List route stops in order
// @Tags Routes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Route ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /routes/{id}/stops [get]
func (h *RouteStopHandler) List(c *gin.Context) {
	stops, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stops, requestMeta(c))
}

// Move godoc
// @Summary Move a stop one position up or down
// @Tags Routes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Route ID"
// @Param stopId path string true "Stop ID"
// @Param payload body dto.MoveStopRequest true "Direction"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /routes/{id}/stops/{stopId}/move [post]
func (h *RouteStopHandler) Move(c *gin.Context) {
	var req dto.MoveStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	stops, err := h.service.Move(c.Request.Context(), c.Param("id"), c.Param("stopId"), req.Direction)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stops, requestMeta(c))
}
