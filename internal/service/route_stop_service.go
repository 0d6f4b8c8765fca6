package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uthutho/admin-api/internal/dto"
	"github.com/uthutho/admin-api/internal/models"
	appErrors "github.com/uthutho/admin-api/pkg/errors"
)

const maxRouteStops = 500

// RouteStopService reorders the stops of a route.
type RouteStopService struct {
	gateway dataGateway
	audit   auditLogger
	logger  *zap.Logger
}

// NewRouteStopService constructs the service. audit may be nil.
func NewRouteStopService(gateway dataGateway, audit auditLogger, logger *zap.Logger) *RouteStopService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteStopService{gateway: gateway, audit: audit, logger: logger}
}

// List returns the route's stop associations ordered by position.
func (s *RouteStopService) List(ctx context.Context, routeID string) ([]models.RouteStop, error) {
	if routeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "route id is required")
	}
	var route models.Route
	if err := s.gateway.Get(ctx, models.TableRoutes, routeID, &route); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load route")
	}
	stops := []models.RouteStop{}
	err := s.gateway.List(ctx, models.TableRouteStops, models.Query{
		Filter:  models.Row{"route_id": routeID},
		OrderBy: "order_number",
		Limit:   maxRouteStops,
	}, &stops)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list route stops")
	}
	return stops, nil
}

// Move swaps a stop with its neighbour in the given direction and returns the new order.
// The two position writes are independent; if the second fails the route is
// left with a duplicated position and CLEANUP_FAILED is returned.
func (s *RouteStopService) Move(ctx context.Context, routeID, stopID string, direction dto.MoveDirection) ([]models.RouteStop, error) {
	if direction != dto.MoveUp && direction != dto.MoveDown {
		return nil, appErrors.Clone(appErrors.ErrValidation, "direction must be up or down")
	}
	stops, err := s.List(ctx, routeID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range stops {
		if stops[i].StopID == stopID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "stop is not on this route")
	}
	target := idx - 1
	if direction == dto.MoveDown {
		target = idx + 1
	}
	if target < 0 || target >= len(stops) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("stop cannot move %s", direction))
	}

	moving, neighbour := stops[idx], stops[target]
	err = s.gateway.Update(ctx, models.TableRouteStops, moving.ID,
		models.Row{"order_number": neighbour.OrderNumber},
		models.Row{"order_number": moving.OrderNumber})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "stop order changed concurrently")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrMutationFailed, "failed to move stop")
	}
	err = s.gateway.Update(ctx, models.TableRouteStops, neighbour.ID,
		models.Row{"order_number": moving.OrderNumber},
		models.Row{"order_number": neighbour.OrderNumber})
	if err != nil {
		s.logger.Error("route stop swap left incomplete",
			zap.String("route_id", routeID),
			zap.String("moved", moving.ID),
			zap.String("neighbour", neighbour.ID),
			zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrCleanupFailed, "stop moved but neighbour could not be reordered")
	}

	stops[idx].OrderNumber, stops[target].OrderNumber = neighbour.OrderNumber, moving.OrderNumber
	stops[idx], stops[target] = stops[target], stops[idx]

	s.emitAudit(ctx, routeID, moving, neighbour)
	return stops, nil
}

func (s *RouteStopService) emitAudit(ctx context.Context, routeID string, moving, neighbour models.RouteStop) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal([]models.RouteStop{moving, neighbour})
	moving.OrderNumber, neighbour.OrderNumber = neighbour.OrderNumber, moving.OrderNumber
	newValues, _ := json.Marshal([]models.RouteStop{moving, neighbour})
	entry := &models.AuditLog{
		Action:     models.AuditActionStopReorder,
		Resource:   string(models.TableRouteStops),
		ResourceID: &routeID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "route-stop-service",
	}
	if actor, err := s.gateway.CurrentUser(ctx); err == nil {
		entry.UserID = &actor
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
