package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uthutho/admin-api/internal/dto"
	"github.com/uthutho/admin-api/internal/models"
	appErrors "github.com/uthutho/admin-api/pkg/errors"
)

const (
	defaultPointsReward   = 50
	defaultPendingLimit   = 200
	defaultResolveTimeout = 30 * time.Second
	pendingCacheKey       = "pending_requests:all"
	pendingCachePattern   = "pending_requests:*"
	reviewAuditUserAgent  = "review-service"
)

// dataGateway is the table-addressed store the review engine mutates.
type dataGateway interface {
	Get(ctx context.Context, table models.Table, id string, dest interface{}) error
	List(ctx context.Context, table models.Table, q models.Query, dest interface{}) error
	Insert(ctx context.Context, table models.Table, row models.Row) (string, error)
	Update(ctx context.Context, table models.Table, id string, patch, match models.Row) error
	Delete(ctx context.Context, table models.Table, id string, match models.Row) error
	CurrentUser(ctx context.Context) (string, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ResolutionNotifier receives resolution events once a request has left the pending set.
type ResolutionNotifier interface {
	NotifyResolved(ctx context.Context, event dto.ResolutionEvent) error
}

// ReviewService approves or rejects pending user requests. Each resolution is
// a fixed sequence of independent writes; a failure part-way leaves the
// earlier writes in place. Once validation passes the sequence runs to
// completion even if the caller goes away.
type ReviewService struct {
	gateway      dataGateway
	audit        auditLogger
	cache        *CacheService
	notifier     ResolutionNotifier
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	pointsReward int
	pendingLimit int
	cacheTTL     time.Duration
	timeout      time.Duration
	now          func() time.Time

	// bumped after every removal so a listing read across it is not cached
	pendingGen atomic.Uint64
}

// ReviewServiceOption configures the service.
type ReviewServiceOption func(*ReviewService)

// WithPointsReward sets the loyalty points granted for an approved price change.
func WithPointsReward(points int) ReviewServiceOption {
	return func(s *ReviewService) {
		if points >= 0 {
			s.pointsReward = points
		}
	}
}

// WithResolveTimeout bounds the write sequence of a single resolution. Zero disables the bound.
func WithResolveTimeout(timeout time.Duration) ReviewServiceOption {
	return func(s *ReviewService) {
		if timeout >= 0 {
			s.timeout = timeout
		}
	}
}

// WithReviewCache enables caching of the pending listing.
func WithReviewCache(cache *CacheService, ttl time.Duration) ReviewServiceOption {
	return func(s *ReviewService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithResolutionNotifier publishes resolution events.
func WithResolutionNotifier(notifier ResolutionNotifier) ReviewServiceOption {
	return func(s *ReviewService) {
		s.notifier = notifier
	}
}

// WithReviewMetrics records resolution outcomes.
func WithReviewMetrics(metrics *MetricsService) ReviewServiceOption {
	return func(s *ReviewService) {
		s.metrics = metrics
	}
}

// WithReviewAudit persists an audit entry per resolution.
func WithReviewAudit(audit auditLogger) ReviewServiceOption {
	return func(s *ReviewService) {
		s.audit = audit
	}
}

// WithReviewClock overrides the time source for event timestamps.
func WithReviewClock(now func() time.Time) ReviewServiceOption {
	return func(s *ReviewService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReviewService constructs the review engine. validate must come from
// NewValidator; nil builds a private one.
func NewReviewService(gateway dataGateway, validate *validator.Validate, logger *zap.Logger, opts ...ReviewServiceOption) *ReviewService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReviewService{
		gateway:      gateway,
		validator:    validate,
		logger:       logger,
		pointsReward: defaultPointsReward,
		pendingLimit: defaultPendingLimit,
		timeout:      defaultResolveTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Resolve dispatches on the concrete request variant.
func (s *ReviewService) Resolve(ctx context.Context, req models.PendingRequest, decision models.Decision) (*dto.ResolutionResult, error) {
	switch r := req.(type) {
	case *models.PriceChangeRequest:
		return s.ResolvePriceChangeRequest(ctx, r, decision)
	case *models.HubRequest:
		return s.ResolveHubRequest(ctx, r, decision)
	case *models.StopRequest:
		return s.ResolveStopRequest(ctx, r, decision)
	case nil:
		return nil, appErrors.Clone(appErrors.ErrValidation, "request is required")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported request type %T", req))
	}
}

// ResolveByID loads the current snapshot of a pending request and resolves it.
func (s *ReviewService) ResolveByID(ctx context.Context, kind models.RequestKind, id string, decision models.Decision) (*dto.ResolutionResult, error) {
	if !decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approve or reject")
	}
	var req models.PendingRequest
	switch kind {
	case models.RequestKindPriceChange:
		req = &models.PriceChangeRequest{}
	case models.RequestKindHub:
		req = &models.HubRequest{}
	case models.RequestKindStop:
		req = &models.StopRequest{}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported request kind %q", kind))
	}
	if err := s.gateway.Get(ctx, kind.Table(), id, req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return s.Resolve(ctx, req, decision)
}

// ResolvePriceChangeRequest applies or discards a proposed fare.
func (s *ReviewService) ResolvePriceChangeRequest(ctx context.Context, req *models.PriceChangeRequest, decision models.Decision) (*dto.ResolutionResult, error) {
	kind := models.RequestKindPriceChange
	if err := s.validate(req, decision); err != nil {
		return nil, s.fail(kind, decision, err)
	}
	ctx, cancel := s.detach(ctx)
	defer cancel()

	result := &dto.ResolutionResult{RequestID: req.ID, Kind: kind, Decision: decision}
	if decision == models.DecisionReject {
		if err := s.removeRequest(ctx, kind, req.ID, decision); err != nil {
			return nil, s.fail(kind, decision, err)
		}
		result.Message = "Price change request rejected and removed."
		s.finish(ctx, req, result)
		return result, nil
	}

	if err := s.gateway.Update(ctx, models.TableRoutes, req.RouteID, models.Row{"cost": req.NewPrice}, nil); err != nil {
		msg := "failed to update route price"
		if errors.Is(err, sql.ErrNoRows) {
			msg = "route not found"
		}
		return nil, s.fail(kind, decision, appErrors.WrapAs(err, appErrors.ErrMutationFailed, msg))
	}

	result.PointsAwarded = s.awardPoints(ctx, req)

	if err := s.removeRequest(ctx, kind, req.ID, decision); err != nil {
		return nil, s.fail(kind, decision, err)
	}
	if result.PointsAwarded {
		result.Message = fmt.Sprintf("Price change approved and route updated! User awarded %d points.", s.pointsReward)
	} else {
		result.Message = "Price change approved and route updated, but awarding points failed."
	}
	s.finish(ctx, req, result)
	return result, nil
}

// ResolveHubRequest creates the proposed hub or discards it.
func (s *ReviewService) ResolveHubRequest(ctx context.Context, req *models.HubRequest, decision models.Decision) (*dto.ResolutionResult, error) {
	kind := models.RequestKindHub
	if err := s.validate(req, decision); err != nil {
		return nil, s.fail(kind, decision, err)
	}
	ctx, cancel := s.detach(ctx)
	defer cancel()

	result := &dto.ResolutionResult{RequestID: req.ID, Kind: kind, Decision: decision}
	if decision == models.DecisionApprove {
		id, err := s.gateway.Insert(ctx, models.TableHubs, models.Row{
			"name":           req.Name,
			"address":        req.Address,
			"transport_type": req.TransportType,
			"description":    req.Description,
			"latitude":       req.Latitude,
			"longitude":      req.Longitude,
		})
		if err != nil {
			return nil, s.fail(kind, decision, appErrors.WrapAs(err, appErrors.ErrMutationFailed, "failed to create hub"))
		}
		result.CreatedID = id
	}

	if err := s.removeRequest(ctx, kind, req.ID, decision); err != nil {
		return nil, s.fail(kind, decision, err)
	}
	if decision == models.DecisionApprove {
		result.Message = "Hub request approved and hub created!"
	} else {
		result.Message = "Hub request rejected and removed."
	}
	s.finish(ctx, req, result)
	return result, nil
}

// ResolveStopRequest creates the proposed stop or discards it.
func (s *ReviewService) ResolveStopRequest(ctx context.Context, req *models.StopRequest, decision models.Decision) (*dto.ResolutionResult, error) {
	kind := models.RequestKindStop
	if err := s.validate(req, decision); err != nil {
		return nil, s.fail(kind, decision, err)
	}
	ctx, cancel := s.detach(ctx)
	defer cancel()

	result := &dto.ResolutionResult{RequestID: req.ID, Kind: kind, Decision: decision}
	if decision == models.DecisionApprove {
		id, err := s.gateway.Insert(ctx, models.TableStops, models.Row{
			"route_id":    req.RouteID,
			"name":        req.Name,
			"latitude":    req.Latitude,
			"longitude":   req.Longitude,
			"cost":        req.Cost,
			"description": req.Description,
		})
		if err != nil {
			return nil, s.fail(kind, decision, appErrors.WrapAs(err, appErrors.ErrMutationFailed, "failed to create stop"))
		}
		result.CreatedID = id
	}

	if err := s.removeRequest(ctx, kind, req.ID, decision); err != nil {
		return nil, s.fail(kind, decision, err)
	}
	if decision == models.DecisionApprove {
		result.Message = "Stop request approved and stop created!"
	} else {
		result.Message = "Stop request rejected and removed."
	}
	s.finish(ctx, req, result)
	return result, nil
}

// ListPending returns all pending requests grouped by kind, oldest first.
func (s *ReviewService) ListPending(ctx context.Context) (*dto.PendingRequests, error) {
	var cached dto.PendingRequests
	if hit, _ := s.cache.Get(ctx, pendingCacheKey, &cached); hit {
		return &cached, nil
	}
	gen := s.pendingGen.Load()

	query := models.Query{
		Filter:  models.Row{"status": string(models.RequestStatusPending)},
		OrderBy: "created_at",
		Limit:   s.pendingLimit,
	}
	pending := &dto.PendingRequests{
		PriceChanges: []models.PriceChangeRequest{},
		Hubs:         []models.HubRequest{},
		Stops:        []models.StopRequest{},
	}
	if err := s.gateway.List(ctx, models.TablePriceChangeRequests, query, &pending.PriceChanges); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list price change requests")
	}
	if err := s.gateway.List(ctx, models.TableHubRequests, query, &pending.Hubs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hub requests")
	}
	if err := s.gateway.List(ctx, models.TableStopRequests, query, &pending.Stops); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stop requests")
	}

	s.metrics.SetPending(models.RequestKindPriceChange, len(pending.PriceChanges))
	s.metrics.SetPending(models.RequestKindHub, len(pending.Hubs))
	s.metrics.SetPending(models.RequestKindStop, len(pending.Stops))

	s.cachePending(ctx, gen, pending)
	return pending, nil
}

// cachePending stores a listing read at generation gen. A removal that
// overlaps the store either prevents it or invalidates right after it.
func (s *ReviewService) cachePending(ctx context.Context, gen uint64, pending *dto.PendingRequests) {
	if !s.cache.Enabled() || s.pendingGen.Load() != gen {
		return
	}
	if err := s.cache.Set(ctx, pendingCacheKey, pending, s.cacheTTL); err != nil {
		return
	}
	if s.pendingGen.Load() != gen {
		_ = s.cache.Invalidate(ctx, pendingCachePattern)
	}
}

// awardPoints credits the requester. Failures are logged and reported as false.
func (s *ReviewService) awardPoints(ctx context.Context, req *models.PriceChangeRequest) bool {
	logFailure := func(err error, msg string) bool {
		s.logger.Warn(msg,
			zap.String("request_id", req.ID),
			zap.String("user_id", req.UserID),
			zap.Int("reward", s.pointsReward),
			zap.Error(err))
		s.metrics.RecordPointsAwardFailure()
		return false
	}

	var profile models.Profile
	if err := s.gateway.Get(ctx, models.TableProfiles, req.UserID, &profile); err != nil {
		return logFailure(err, "failed to read requester points")
	}
	err := s.gateway.Update(ctx, models.TableProfiles, req.UserID,
		models.Row{"points": profile.Points + s.pointsReward},
		models.Row{"points": profile.Points})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return logFailure(err, "requester points changed concurrently")
		}
		return logFailure(err, "failed to award points")
	}
	return true
}

// removeRequest deletes a request that is still pending. On reject the delete
// is the only write, so its failure leaves nothing changed.
func (s *ReviewService) removeRequest(ctx context.Context, kind models.RequestKind, id string, decision models.Decision) error {
	err := s.gateway.Delete(ctx, kind.Table(), id, models.Row{"status": string(models.RequestStatusPending)})
	switch {
	case err == nil:
		s.pendingGen.Add(1)
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrConflict, "request already resolved")
	case decision == models.DecisionReject:
		return appErrors.WrapAs(err, appErrors.ErrMutationFailed, "request could not be removed")
	default:
		return appErrors.WrapAs(err, appErrors.ErrCleanupFailed, "change applied but request could not be removed")
	}
}

// detach keeps request values such as the caller's claims but drops its
// cancellation, bounded by the resolve timeout.
func (s *ReviewService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *ReviewService) validate(req models.PendingRequest, decision models.Decision) error {
	if !decision.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "decision must be approve or reject")
	}
	if req == nil || reflect.ValueOf(req).IsNil() {
		return appErrors.Clone(appErrors.ErrValidation, "request is required")
	}
	if state := req.State(); state != models.RequestStatusPending {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("request is %s, only pending requests can be resolved", state))
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request")
	}
	return nil
}

func (s *ReviewService) fail(kind models.RequestKind, decision models.Decision, err error) error {
	// only the outermost code counts; wrapped causes may carry their own
	outcome := OutcomeMutationFailed
	switch appErrors.FromError(err).Code {
	case appErrors.ErrValidation.Code:
		outcome = OutcomeValidation
	case appErrors.ErrCleanupFailed.Code:
		outcome = OutcomeCleanupFailed
	case appErrors.ErrConflict.Code:
		outcome = OutcomeConflict
	}
	label := decision
	if !decision.Valid() {
		label = "invalid"
	}
	s.metrics.RecordResolution(kind, label, outcome)
	s.logger.Warn("request resolution failed",
		zap.String("kind", string(kind)),
		zap.String("decision", string(decision)),
		zap.String("outcome", outcome),
		zap.Error(err))
	return err
}

// finish runs the post-resolution side effects. None of them can fail the call.
func (s *ReviewService) finish(ctx context.Context, req models.PendingRequest, result *dto.ResolutionResult) {
	s.metrics.RecordResolution(result.Kind, result.Decision, OutcomeSuccess)

	actor, err := s.gateway.CurrentUser(ctx)
	if err != nil {
		s.logger.Debug("resolution without authenticated actor", zap.String("request_id", result.RequestID))
	}

	s.emitAudit(ctx, req, result, actor)

	if err := s.cache.Invalidate(ctx, pendingCachePattern); err != nil {
		s.logger.Warn("failed to invalidate pending cache", zap.Error(err))
	}

	if s.notifier != nil {
		event := dto.ResolutionEvent{
			RequestID:     result.RequestID,
			Kind:          result.Kind,
			Decision:      result.Decision,
			RequesterID:   req.Requester(),
			ResolvedBy:    actor,
			PointsAwarded: result.PointsAwarded,
			CreatedID:     result.CreatedID,
			ResolvedAt:    s.now(),
		}
		if err := s.notifier.NotifyResolved(ctx, event); err != nil {
			s.logger.Warn("failed to publish resolution event", zap.String("request_id", result.RequestID), zap.Error(err))
		}
	}

	s.logger.Info("request resolved",
		zap.String("request_id", result.RequestID),
		zap.String("kind", string(result.Kind)),
		zap.String("decision", string(result.Decision)),
		zap.String("actor", actor),
		zap.Bool("points_awarded", result.PointsAwarded))
}

func (s *ReviewService) emitAudit(ctx context.Context, req models.PendingRequest, result *dto.ResolutionResult, actor string) {
	if s.audit == nil {
		return
	}
	action := models.AuditActionRequestReject
	if result.Decision == models.DecisionApprove {
		action = models.AuditActionRequestApprove
	}
	oldValues, _ := json.Marshal(req)
	newValues, _ := json.Marshal(result)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   string(result.Kind.Table()),
		ResourceID: &result.RequestID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  reviewAuditUserAgent,
	}
	if actor != "" {
		entry.UserID = &actor
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
