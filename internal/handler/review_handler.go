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

type reviewService interface {
	ListPending(ctx context.Context) (*dto.PendingRequests, error)
	ResolveByID(ctx context.Context, kind models.RequestKind, id string, decision models.Decision) (*dto.ResolutionResult, error)
}

// ReviewHandler exposes the moderation queue for user submitted requests.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler builds a new handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// ListPending godoc
// @Summary List pending requests
// @Description Price change, hub and stop requests awaiting review, oldest first
// @Tags Review
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/pending [get]
func (h *ReviewHandler) ListPending(c *gin.Context) {
	pending, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := requestMeta(c)
	meta["total"] = pending.Total()
	response.JSON(c, http.StatusOK, pending, meta)
}

// Resolve godoc
// @Summary Approve or reject a pending request
// @Description Approving applies the proposed change, rejecting discards it. Either way the request is removed.
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Request kind" Enums(price-change, hub, stop)
// @Param id path string true "Request ID"
// @Param payload body dto.ResolveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /requests/{kind}/{id}/resolve [post]
func (h *ReviewHandler) Resolve(c *gin.Context) {
	kind, err := models.ParseRequestKind(c.Param("kind"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolve payload"))
		return
	}
	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "decision must be approve or reject"))
		return
	}

	result, err := h.service.ResolveByID(c.Request.Context(), kind, c.Param("id"), decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, requestMeta(c))
}
