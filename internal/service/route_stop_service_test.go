package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uthutho/admin-api/internal/dto"
	"github.com/uthutho/admin-api/internal/models"
	appErrors "github.com/uthutho/admin-api/pkg/errors"
)

type routeStopGatewayStub struct {
	*gatewayStub
	routeStops  map[string]*models.RouteStop
	updates     int
	failOnWrite int
}

func newRouteStopGateway() *routeStopGatewayStub {
	gw := seededGateway()
	return &routeStopGatewayStub{
		gatewayStub: gw,
		routeStops: map[string]*models.RouteStop{
			"rs-1": {ID: "rs-1", RouteID: "R1", StopID: "S1", OrderNumber: 1},
			"rs-2": {ID: "rs-2", RouteID: "R1", StopID: "S2", OrderNumber: 2},
			"rs-3": {ID: "rs-3", RouteID: "R1", StopID: "S3", OrderNumber: 3},
		},
	}
}

func (g *routeStopGatewayStub) List(_ context.Context, table models.Table, q models.Query, dest interface{}) error {
	out := dest.(*[]models.RouteStop)
	for _, rs := range g.routeStops {
		if rs.RouteID == q.Filter["route_id"] {
			*out = append(*out, *rs)
		}
	}
	sort.Slice(*out, func(i, j int) bool { return (*out)[i].OrderNumber < (*out)[j].OrderNumber })
	return nil
}

func (g *routeStopGatewayStub) Update(_ context.Context, table models.Table, id string, patch, match models.Row) error {
	g.updates++
	if g.failOnWrite == g.updates {
		return errors.New("connection reset")
	}
	rs := g.routeStops[id]
	if rs.OrderNumber != match["order_number"].(int) {
		return sql.ErrNoRows
	}
	rs.OrderNumber = patch["order_number"].(int)
	return nil
}

func stopOrder(stops []models.RouteStop) []string {
	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.StopID)
	}
	return ids
}

func TestRouteStopMove(t *testing.T) {
	gw := newRouteStopGateway()
	audit := &auditStub{}
	svc := NewRouteStopService(gw, audit, nil)

	stops, err := svc.Move(context.Background(), "R1", "S2", dto.MoveUp)
	require.NoError(t, err)
	assert.Equal(t, []string{"S2", "S1", "S3"}, stopOrder(stops))
	assert.Equal(t, 1, gw.routeStops["rs-2"].OrderNumber)
	assert.Equal(t, 2, gw.routeStops["rs-1"].OrderNumber)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStopReorder, audit.logs[0].Action)

	stops, err = svc.Move(context.Background(), "R1", "S2", dto.MoveDown)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2", "S3"}, stopOrder(stops))
}

func TestRouteStopMoveAtEdges(t *testing.T) {
	svc := NewRouteStopService(newRouteStopGateway(), nil, nil)

	_, err := svc.Move(context.Background(), "R1", "S1", dto.MoveUp)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Move(context.Background(), "R1", "S3", dto.MoveDown)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Move(context.Background(), "R1", "S2", dto.MoveDirection("sideways"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Move(context.Background(), "R1", "S9", dto.MoveUp)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Move(context.Background(), "R404", "S1", dto.MoveDown)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRouteStopMovePartialFailure(t *testing.T) {
	t.Run("first write", func(t *testing.T) {
		gw := newRouteStopGateway()
		gw.failOnWrite = 1
		svc := NewRouteStopService(gw, nil, nil)

		_, err := svc.Move(context.Background(), "R1", "S1", dto.MoveDown)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrMutationFailed.Code))
		assert.Equal(t, 1, gw.routeStops["rs-1"].OrderNumber)
	})

	t.Run("second write", func(t *testing.T) {
		gw := newRouteStopGateway()
		gw.failOnWrite = 2
		svc := NewRouteStopService(gw, nil, nil)

		_, err := svc.Move(context.Background(), "R1", "S1", dto.MoveDown)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCleanupFailed.Code))
		assert.Equal(t, 2, gw.routeStops["rs-1"].OrderNumber)
		assert.Equal(t, 2, gw.routeStops["rs-2"].OrderNumber)
	})
}
