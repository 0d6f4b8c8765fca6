package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uthutho/admin-api/internal/dto"
	"github.com/uthutho/admin-api/internal/models"
	"github.com/uthutho/admin-api/internal/repository"
	appErrors "github.com/uthutho/admin-api/pkg/errors"
)

type gatewayStub struct {
	routes   map[string]*models.Route
	profiles map[string]*models.Profile
	hubs     map[string]models.Row
	stops    map[string]models.Row
	requests map[models.Table]map[string]models.PendingRequest

	failGet    map[models.Table]error
	failUpdate map[models.Table]error
	failInsert map[models.Table]error
	failDelete map[models.Table]error

	actor  string
	writes []string
	lists  int
	nextID int
	onList func(models.Table)
}

func newGatewayStub() *gatewayStub {
	return &gatewayStub{
		routes:     map[string]*models.Route{},
		profiles:   map[string]*models.Profile{},
		hubs:       map[string]models.Row{},
		stops:      map[string]models.Row{},
		requests:   map[models.Table]map[string]models.PendingRequest{},
		failGet:    map[models.Table]error{},
		failUpdate: map[models.Table]error{},
		failInsert: map[models.Table]error{},
		failDelete: map[models.Table]error{},
		actor:      "admin-1",
	}
}

func (g *gatewayStub) addRequest(req models.PendingRequest) {
	table := req.Kind().Table()
	if g.requests[table] == nil {
		g.requests[table] = map[string]models.PendingRequest{}
	}
	g.requests[table][req.RequestID()] = req
}

func (g *gatewayStub) hasRequest(kind models.RequestKind, id string) bool {
	_, ok := g.requests[kind.Table()][id]
	return ok
}

func (g *gatewayStub) Get(_ context.Context, table models.Table, id string, dest interface{}) error {
	if err := g.failGet[table]; err != nil {
		return err
	}
	switch d := dest.(type) {
	case *models.Profile:
		p, ok := g.profiles[id]
		if !ok {
			return sql.ErrNoRows
		}
		*d = *p
	case *models.Route:
		r, ok := g.routes[id]
		if !ok {
			return sql.ErrNoRows
		}
		*d = *r
	case *models.PriceChangeRequest:
		r, ok := g.requests[table][id]
		if !ok {
			return sql.ErrNoRows
		}
		*d = *r.(*models.PriceChangeRequest)
	case *models.HubRequest:
		r, ok := g.requests[table][id]
		if !ok {
			return sql.ErrNoRows
		}
		*d = *r.(*models.HubRequest)
	case *models.StopRequest:
		r, ok := g.requests[table][id]
		if !ok {
			return sql.ErrNoRows
		}
		*d = *r.(*models.StopRequest)
	default:
		return fmt.Errorf("unexpected dest %T", dest)
	}
	return nil
}

func (g *gatewayStub) List(_ context.Context, table models.Table, _ models.Query, dest interface{}) error {
	g.lists++
	for _, req := range g.requests[table] {
		switch d := dest.(type) {
		case *[]models.PriceChangeRequest:
			*d = append(*d, *req.(*models.PriceChangeRequest))
		case *[]models.HubRequest:
			*d = append(*d, *req.(*models.HubRequest))
		case *[]models.StopRequest:
			*d = append(*d, *req.(*models.StopRequest))
		}
	}
	if g.onList != nil {
		g.onList(table)
	}
	return nil
}

func (g *gatewayStub) Insert(_ context.Context, table models.Table, row models.Row) (string, error) {
	g.writes = append(g.writes, "insert:"+string(table))
	if err := g.failInsert[table]; err != nil {
		return "", err
	}
	g.nextID++
	id := fmt.Sprintf("%s-%d", table, g.nextID)
	switch table {
	case models.TableHubs:
		g.hubs[id] = row
	case models.TableStops:
		g.stops[id] = row
	}
	return id, nil
}

func (g *gatewayStub) Update(_ context.Context, table models.Table, id string, patch, match models.Row) error {
	g.writes = append(g.writes, "update:"+string(table))
	if err := g.failUpdate[table]; err != nil {
		return err
	}
	switch table {
	case models.TableRoutes:
		r, ok := g.routes[id]
		if !ok {
			return sql.ErrNoRows
		}
		r.Cost = patch["cost"].(decimal.Decimal)
	case models.TableProfiles:
		p, ok := g.profiles[id]
		if !ok {
			return sql.ErrNoRows
		}
		if expected, guarded := match["points"]; guarded && expected.(int) != p.Points {
			return sql.ErrNoRows
		}
		p.Points = patch["points"].(int)
	}
	return nil
}

func (g *gatewayStub) Delete(_ context.Context, table models.Table, id string, match models.Row) error {
	g.writes = append(g.writes, "delete:"+string(table))
	if err := g.failDelete[table]; err != nil {
		return err
	}
	if _, ok := g.requests[table][id]; !ok {
		return sql.ErrNoRows
	}
	if match["status"] != string(models.RequestStatusPending) {
		return sql.ErrNoRows
	}
	delete(g.requests[table], id)
	return nil
}

func (g *gatewayStub) CurrentUser(context.Context) (string, error) {
	if g.actor == "" {
		return "", appErrors.ErrUnauthorized
	}
	return g.actor, nil
}

type notifierStub struct {
	events []dto.ResolutionEvent
	err    error
}

func (n *notifierStub) NotifyResolved(_ context.Context, event dto.ResolutionEvent) error {
	n.events = append(n.events, event)
	return n.err
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newPriceChange() *models.PriceChangeRequest {
	return &models.PriceChangeRequest{
		ID:           "req-1",
		UserID:       "user-1",
		RouteID:      "R1",
		CurrentPrice: decimal.NewFromInt(10),
		NewPrice:     decimal.NewFromInt(15),
		Status:       models.RequestStatusPending,
	}
}

func newHubRequest() *models.HubRequest {
	return &models.HubRequest{
		ID:            "hub-req-1",
		UserID:        "user-2",
		Name:          "Central",
		Address:       "1 Main St",
		TransportType: "Bus",
		Latitude:      -26.2,
		Longitude:     28.0,
		Status:        models.RequestStatusPending,
	}
}

func newStopRequest() *models.StopRequest {
	return &models.StopRequest{
		ID:        "stop-req-1",
		UserID:    "user-3",
		RouteID:   "R1",
		Name:      "Park Station",
		Latitude:  -26.19,
		Longitude: 28.04,
		Cost:      decimal.NewNullDecimal(decimal.NewFromInt(12)),
		Status:    models.RequestStatusPending,
	}
}

func withStatus(req models.PendingRequest, status models.RequestStatus) models.PendingRequest {
	switch r := req.(type) {
	case *models.PriceChangeRequest:
		r.Status = status
	case *models.HubRequest:
		r.Status = status
	case *models.StopRequest:
		r.Status = status
	}
	return req
}

func seededGateway() *gatewayStub {
	gw := newGatewayStub()
	gw.routes["R1"] = &models.Route{ID: "R1", Name: "Soweto - CBD", Cost: decimal.NewFromInt(10)}
	gw.profiles["user-1"] = &models.Profile{ID: "user-1", Points: 120}
	return gw
}

func TestApprovePriceChangeUpdatesRouteAndAwardsPoints(t *testing.T) {
	gw := seededGateway()
	req := newPriceChange()
	gw.addRequest(req)
	notifier := &notifierStub{}
	audit := &auditStub{}
	svc := NewReviewService(gw, nil, nil, WithResolutionNotifier(notifier), WithReviewAudit(audit))

	result, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
	require.NoError(t, err)

	assert.True(t, gw.routes["R1"].Cost.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 170, gw.profiles["user-1"].Points)
	assert.False(t, gw.hasRequest(models.RequestKindPriceChange, "req-1"))
	assert.True(t, result.PointsAwarded)
	assert.Equal(t, "Price change approved and route updated! User awarded 50 points.", result.Message)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "user-1", notifier.events[0].RequesterID)
	assert.Equal(t, "admin-1", notifier.events[0].ResolvedBy)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestApprove, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "admin-1", *audit.logs[0].UserID)
}

func TestPriceChangeRetryAfterCleanupFailure(t *testing.T) {
	gw := seededGateway()
	req := newPriceChange()
	gw.addRequest(req)
	svc := NewReviewService(gw, nil, nil)

	gw.failDelete[models.TablePriceChangeRequests] = errors.New("connection reset")
	_, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCleanupFailed.Code))
	assert.True(t, gw.routes["R1"].Cost.Equal(decimal.NewFromInt(15)))
	assert.True(t, gw.hasRequest(models.RequestKindPriceChange, "req-1"))

	delete(gw.failDelete, models.TablePriceChangeRequests)
	result, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
	require.NoError(t, err)
	assert.True(t, result.PointsAwarded)

	// the route price is set, not shifted, while the reward is granted on every run
	assert.True(t, gw.routes["R1"].Cost.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 220, gw.profiles["user-1"].Points)
	assert.False(t, gw.hasRequest(models.RequestKindPriceChange, "req-1"))
}

func TestRejectOnlyDeletesRequest(t *testing.T) {
	cases := []struct {
		name    string
		req     models.PendingRequest
		message string
	}{
		{"price change", newPriceChange(), "Price change request rejected and removed."},
		{"hub", newHubRequest(), "Hub request rejected and removed."},
		{"stop", newStopRequest(), "Stop request rejected and removed."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := seededGateway()
			gw.addRequest(tc.req)
			svc := NewReviewService(gw, nil, nil)

			result, err := svc.Resolve(context.Background(), tc.req, models.DecisionReject)
			require.NoError(t, err)
			assert.Equal(t, tc.message, result.Message)
			assert.Equal(t, []string{"delete:" + string(tc.req.Kind().Table())}, gw.writes)
			assert.False(t, gw.hasRequest(tc.req.Kind(), tc.req.RequestID()))

			assert.True(t, gw.routes["R1"].Cost.Equal(decimal.NewFromInt(10)))
			assert.Equal(t, 120, gw.profiles["user-1"].Points)
			assert.Empty(t, gw.hubs)
			assert.Empty(t, gw.stops)
		})
	}
}

func TestMutationFailureLeavesRequestPending(t *testing.T) {
	t.Run("route update", func(t *testing.T) {
		gw := seededGateway()
		req := newPriceChange()
		gw.addRequest(req)
		gw.failUpdate[models.TableRoutes] = errors.New("timeout")
		svc := NewReviewService(gw, nil, nil)

		_, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrMutationFailed.Code))
		assert.True(t, gw.hasRequest(models.RequestKindPriceChange, "req-1"))
		assert.Equal(t, models.RequestStatusPending, req.Status)
		assert.Equal(t, 120, gw.profiles["user-1"].Points)
	})

	t.Run("hub insert", func(t *testing.T) {
		gw := seededGateway()
		req := newHubRequest()
		gw.addRequest(req)
		gw.failInsert[models.TableHubs] = errors.New("unique violation")
		svc := NewReviewService(gw, nil, nil)

		_, err := svc.ResolveHubRequest(context.Background(), req, models.DecisionApprove)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrMutationFailed.Code))
		assert.True(t, gw.hasRequest(models.RequestKindHub, req.ID))
		assert.Equal(t, []string{"insert:hubs"}, gw.writes)
	})

	t.Run("missing route", func(t *testing.T) {
		gw := newGatewayStub()
		req := newPriceChange()
		gw.addRequest(req)
		svc := NewReviewService(gw, nil, nil)

		_, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrMutationFailed.Code))
		assert.True(t, gw.hasRequest(models.RequestKindPriceChange, req.ID))
	})
}

func TestPointsFailureDoesNotFailApproval(t *testing.T) {
	cases := map[string]func(*gatewayStub){
		"read fails":  func(gw *gatewayStub) { gw.failGet[models.TableProfiles] = errors.New("timeout") },
		"write fails": func(gw *gatewayStub) { gw.failUpdate[models.TableProfiles] = errors.New("timeout") },
		"no profile":  func(gw *gatewayStub) { delete(gw.profiles, "user-1") },
	}
	for name, breakPoints := range cases {
		t.Run(name, func(t *testing.T) {
			gw := seededGateway()
			req := newPriceChange()
			gw.addRequest(req)
			breakPoints(gw)
			metrics := NewMetricsService()
			svc := NewReviewService(gw, nil, nil, WithReviewMetrics(metrics))

			result, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
			require.NoError(t, err)
			assert.False(t, result.PointsAwarded)
			assert.Equal(t, "Price change approved and route updated, but awarding points failed.", result.Message)
			assert.True(t, gw.routes["R1"].Cost.Equal(decimal.NewFromInt(15)))
			assert.False(t, gw.hasRequest(models.RequestKindPriceChange, "req-1"))
		})
	}
}

func TestApproveHubCreatesHub(t *testing.T) {
	gw := seededGateway()
	req := newHubRequest()
	gw.addRequest(req)
	svc := NewReviewService(gw, nil, nil)

	result, err := svc.ResolveHubRequest(context.Background(), req, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, "Hub request approved and hub created!", result.Message)
	require.Contains(t, gw.hubs, result.CreatedID)

	hub := gw.hubs[result.CreatedID]
	assert.Equal(t, "Central", hub["name"])
	assert.Equal(t, "1 Main St", hub["address"])
	assert.Equal(t, "Bus", hub["transport_type"])
	assert.Equal(t, -26.2, hub["latitude"])
	assert.Equal(t, 28.0, hub["longitude"])
	assert.False(t, gw.hasRequest(models.RequestKindHub, req.ID))
}

func TestApproveStopCreatesStop(t *testing.T) {
	gw := seededGateway()
	req := newStopRequest()
	gw.addRequest(req)
	svc := NewReviewService(gw, nil, nil)

	result, err := svc.ResolveStopRequest(context.Background(), req, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, "Stop request approved and stop created!", result.Message)
	stop := gw.stops[result.CreatedID]
	require.NotNil(t, stop)
	assert.Equal(t, "R1", stop["route_id"])
	assert.Equal(t, "Park Station", stop["name"])
	assert.False(t, gw.hasRequest(models.RequestKindStop, req.ID))
}

func TestRejectStopCreatesNoStop(t *testing.T) {
	gw := seededGateway()
	req := newStopRequest()
	gw.addRequest(req)
	svc := NewReviewService(gw, nil, nil)

	_, err := svc.ResolveStopRequest(context.Background(), req, models.DecisionReject)
	require.NoError(t, err)
	assert.Empty(t, gw.stops)
	assert.False(t, gw.hasRequest(models.RequestKindStop, req.ID))
}

func TestResolveValidatesBeforeMutating(t *testing.T) {
	badPrice := newPriceChange()
	badPrice.NewPrice = decimal.Zero
	badHub := newHubRequest()
	badHub.Latitude = 120
	noName := newStopRequest()
	noName.Name = ""

	cases := []struct {
		name     string
		req      models.PendingRequest
		decision models.Decision
	}{
		{"unknown decision", newPriceChange(), models.Decision("maybe")},
		{"non positive price", badPrice, models.DecisionApprove},
		{"latitude out of range", badHub, models.DecisionApprove},
		{"missing stop name", noName, models.DecisionReject},
		{"nil request", (*models.HubRequest)(nil), models.DecisionApprove},
		{"approved snapshot", withStatus(newPriceChange(), models.RequestStatusApproved), models.DecisionApprove},
		{"rejected snapshot", withStatus(newHubRequest(), models.RequestStatusRejected), models.DecisionReject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := seededGateway()
			svc := NewReviewService(gw, nil, nil)

			_, err := svc.Resolve(context.Background(), tc.req, tc.decision)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
			assert.Empty(t, gw.writes)
		})
	}
}

func TestResolveAlreadyResolvedIsConflict(t *testing.T) {
	gw := seededGateway()
	svc := NewReviewService(gw, nil, nil)

	_, err := svc.ResolveHubRequest(context.Background(), newHubRequest(), models.DecisionReject)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestResolveByID(t *testing.T) {
	gw := seededGateway()
	gw.addRequest(newStopRequest())
	svc := NewReviewService(gw, nil, nil)

	_, err := svc.ResolveByID(context.Background(), models.RequestKindHub, "missing", models.DecisionApprove)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.ResolveByID(context.Background(), models.RequestKind("route"), "x", models.DecisionApprove)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	result, err := svc.ResolveByID(context.Background(), models.RequestKindStop, "stop-req-1", models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.RequestKindStop, result.Kind)
	assert.Len(t, gw.stops, 1)
}

func TestNotifierFailureIsIgnored(t *testing.T) {
	gw := seededGateway()
	req := newHubRequest()
	gw.addRequest(req)
	gw.actor = ""
	notifier := &notifierStub{err: errors.New("queue full")}
	svc := NewReviewService(gw, nil, nil, WithResolutionNotifier(notifier))

	result, err := svc.ResolveHubRequest(context.Background(), req, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, "Hub request rejected and removed.", result.Message)
	require.Len(t, notifier.events, 1)
	assert.Empty(t, notifier.events[0].ResolvedBy)
}

func TestListPendingUsesCacheUntilResolution(t *testing.T) {
	gw := seededGateway()
	gw.addRequest(newPriceChange())
	gw.addRequest(newHubRequest())
	cache := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), nil, time.Minute, nil)
	svc := NewReviewService(gw, nil, nil, WithReviewCache(cache, time.Minute))

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pending.Total())
	assert.Len(t, pending.PriceChanges, 1)
	assert.NotNil(t, pending.Stops)
	assert.Equal(t, 3, gw.lists)

	_, err = svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, gw.lists)

	_, err = svc.ResolveHubRequest(context.Background(), newHubRequest(), models.DecisionReject)
	require.NoError(t, err)

	pending, err = svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, gw.lists)
	assert.Equal(t, 1, pending.Total())
}

func TestApproveRefusesResolvedSnapshot(t *testing.T) {
	gw := seededGateway()
	req := newPriceChange()
	req.Status = models.RequestStatusApproved
	gw.addRequest(req)
	svc := NewReviewService(gw, nil, nil)

	_, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Empty(t, gw.writes)
	assert.True(t, gw.routes["R1"].Cost.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 120, gw.profiles["user-1"].Points)
}

// cancellingGateway honours context cancellation and cancels the caller's
// context once the route price has been written.
type cancellingGateway struct {
	*gatewayStub
	cancel context.CancelFunc
}

func (g *cancellingGateway) Get(ctx context.Context, table models.Table, id string, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.gatewayStub.Get(ctx, table, id, dest)
}

func (g *cancellingGateway) Update(ctx context.Context, table models.Table, id string, patch, match models.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := g.gatewayStub.Update(ctx, table, id, patch, match)
	if table == models.TableRoutes {
		g.cancel()
	}
	return err
}

func (g *cancellingGateway) Delete(ctx context.Context, table models.Table, id string, match models.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.gatewayStub.Delete(ctx, table, id, match)
}

func TestResolutionCompletesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stub := seededGateway()
	req := newPriceChange()
	stub.addRequest(req)
	gw := &cancellingGateway{gatewayStub: stub, cancel: cancel}
	svc := NewReviewService(gw, nil, nil, WithResolveTimeout(time.Second))

	result, err := svc.ResolvePriceChangeRequest(ctx, req, models.DecisionApprove)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.True(t, result.PointsAwarded)
	assert.True(t, stub.routes["R1"].Cost.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 170, stub.profiles["user-1"].Points)
	assert.False(t, stub.hasRequest(models.RequestKindPriceChange, "req-1"))
}

func TestRejectRemovalFailureReportsNothingApplied(t *testing.T) {
	gw := seededGateway()
	req := newHubRequest()
	gw.addRequest(req)
	gw.failDelete[models.TableHubRequests] = errors.New("connection reset")
	svc := NewReviewService(gw, nil, nil)

	_, err := svc.ResolveHubRequest(context.Background(), req, models.DecisionReject)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMutationFailed.Code, appErr.Code)
	assert.Equal(t, "request could not be removed", appErr.Message)
	assert.NotContains(t, err.Error(), "change applied")
	assert.True(t, gw.hasRequest(models.RequestKindHub, req.ID))
}

func TestFailureOutcomeUsesOutermostCode(t *testing.T) {
	gw := seededGateway()
	req := newPriceChange()
	gw.addRequest(req)
	gw.failUpdate[models.TableRoutes] = appErrors.Clone(appErrors.ErrValidation, "column not writable")
	metrics := NewMetricsService()
	svc := NewReviewService(gw, nil, nil, WithReviewMetrics(metrics))

	_, err := svc.ResolvePriceChangeRequest(context.Background(), req, models.DecisionApprove)
	require.Error(t, err)

	kind, decision := string(models.RequestKindPriceChange), string(models.DecisionApprove)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues(kind, decision, OutcomeMutationFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues(kind, decision, OutcomeValidation)))
}

func TestListPendingNotCachedAcrossConcurrentResolution(t *testing.T) {
	gw := seededGateway()
	gw.addRequest(newPriceChange())
	gw.addRequest(newHubRequest())
	cache := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), nil, time.Minute, nil)
	svc := NewReviewService(gw, nil, nil, WithReviewCache(cache, time.Minute))

	resolved := false
	gw.onList = func(table models.Table) {
		if table != models.TableStopRequests || resolved {
			return
		}
		resolved = true
		_, err := svc.ResolveHubRequest(context.Background(), newHubRequest(), models.DecisionReject)
		require.NoError(t, err)
	}

	stale, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stale.Total())

	fresh, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, gw.lists)
	assert.Equal(t, 1, fresh.Total())
	assert.Empty(t, fresh.Hubs)
}
