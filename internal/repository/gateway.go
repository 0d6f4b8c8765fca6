package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uthutho/admin-api/internal/models"
	appErrors "github.com/uthutho/admin-api/pkg/errors"
)

// tableColumns is the closed set of tables and columns the gateway will address.
var tableColumns = map[models.Table][]string{
	models.TablePriceChangeRequests: {"id", "user_id", "route_id", "current_price", "new_price", "status", "created_at", "updated_at"},
	models.TableHubRequests:         {"id", "user_id", "name", "address", "transport_type", "description", "latitude", "longitude", "status", "created_at", "updated_at"},
	models.TableStopRequests:        {"id", "user_id", "route_id", "name", "latitude", "longitude", "cost", "description", "status", "created_at", "updated_at"},
	models.TableRoutes:              {"id", "name", "start_point", "end_point", "transport_type", "cost", "hub_id", "created_at", "updated_at"},
	models.TableHubs:                {"id", "name", "address", "transport_type", "description", "latitude", "longitude", "created_at", "updated_at"},
	models.TableStops:               {"id", "route_id", "name", "latitude", "longitude", "cost", "description", "created_at", "updated_at"},
	models.TableRouteStops:          {"id", "route_id", "stop_id", "order_number"},
	models.TableProfiles:            {"id", "first_name", "last_name", "points", "updated_at"},
}

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithQueryObserver reports query durations, typically to the metrics service.
func WithQueryObserver(observer queryObserver) GatewayOption {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// WithClock overrides the timestamp source used for created_at/updated_at.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// Gateway is table-addressed row access over PostgreSQL. Calls are
// independent; nothing spans a transaction across tables.
type Gateway struct {
	db       *sqlx.DB
	builder  sq.StatementBuilderType
	observer queryObserver
	now      func() time.Time
}

// NewGateway constructs the gateway.
func NewGateway(db *sqlx.DB, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Get loads the row with the given id into dest. Missing rows yield sql.ErrNoRows.
func (g *Gateway) Get(ctx context.Context, table models.Table, id string, dest interface{}) error {
	cols, err := columnsOf(table)
	if err != nil {
		return err
	}
	query, args, err := g.builder.Select(cols...).From(string(table)).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return fmt.Errorf("build get %s: %w", table, err)
	}
	defer g.observe("get_"+string(table), time.Now())
	if err := g.db.GetContext(ctx, dest, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("get %s: %w", table, err)
	}
	return nil
}

// List loads the rows matching q into dest, which must be a pointer to a slice.
func (g *Gateway) List(ctx context.Context, table models.Table, q models.Query, dest interface{}) error {
	cols, err := columnsOf(table)
	if err != nil {
		return err
	}
	if err := checkColumns(table, q.Filter); err != nil {
		return err
	}
	builder := g.builder.Select(cols...).From(string(table))
	if len(q.Filter) > 0 {
		builder = builder.Where(sq.Eq(q.Filter))
	}
	if q.OrderBy != "" {
		if !hasColumn(table, q.OrderBy) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown order column %s.%s", table, q.OrderBy))
		}
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		builder = builder.OrderBy(q.OrderBy + " " + direction)
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build list %s: %w", table, err)
	}
	defer g.observe("list_"+string(table), time.Now())
	if err := g.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	return nil
}

// Insert stores row and returns its id. A missing id is generated, and
// timestamp columns default to now.
func (g *Gateway) Insert(ctx context.Context, table models.Table, row models.Row) (string, error) {
	if err := checkColumns(table, row); err != nil {
		return "", err
	}
	values := make(models.Row, len(row)+3)
	for k, v := range row {
		values[k] = v
	}
	if id, _ := values["id"].(string); id == "" {
		values["id"] = uuid.NewString()
	}
	now := g.now()
	for _, col := range []string{"created_at", "updated_at"} {
		if _, set := values[col]; !set && hasColumn(table, col) {
			values[col] = now
		}
	}
	query, args, err := g.builder.Insert(string(table)).SetMap(values).Suffix("RETURNING id").ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert %s: %w", table, err)
	}
	defer g.observe("insert_"+string(table), time.Now())
	var id string
	if err := g.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// Update applies patch to the row with the given id. match adds equality
// guards; when no row satisfies id and guards, sql.ErrNoRows is returned.
func (g *Gateway) Update(ctx context.Context, table models.Table, id string, patch, match models.Row) error {
	if len(patch) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("empty patch for %s", table))
	}
	if err := checkColumns(table, patch); err != nil {
		return err
	}
	if err := checkColumns(table, match); err != nil {
		return err
	}
	values := make(models.Row, len(patch)+1)
	for k, v := range patch {
		values[k] = v
	}
	if _, set := values["updated_at"]; !set && hasColumn(table, "updated_at") {
		values["updated_at"] = g.now()
	}
	builder := g.builder.Update(string(table)).SetMap(values).Where(sq.Eq{"id": id})
	if len(match) > 0 {
		builder = builder.Where(sq.Eq(match))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update %s: %w", table, err)
	}
	defer g.observe("update_"+string(table), time.Now())
	result, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return expectAffected(result, table)
}

// Delete removes the row with the given id, subject to the match guards.
func (g *Gateway) Delete(ctx context.Context, table models.Table, id string, match models.Row) error {
	if err := checkColumns(table, match); err != nil {
		return err
	}
	builder := g.builder.Delete(string(table)).Where(sq.Eq{"id": id})
	if len(match) > 0 {
		builder = builder.Where(sq.Eq(match))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s: %w", table, err)
	}
	defer g.observe("delete_"+string(table), time.Now())
	result, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return expectAffected(result, table)
}

// CurrentUser returns the id of the authenticated staff member on ctx.
func (g *Gateway) CurrentUser(ctx context.Context) (string, error) {
	claims := models.ClaimsFromContext(ctx)
	if claims == nil || claims.UserID == "" {
		return "", appErrors.ErrUnauthorized
	}
	return claims.UserID, nil
}

func (g *Gateway) observe(label string, start time.Time) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveDBQuery(label, time.Since(start))
}

func expectAffected(result sql.Result, table models.Table) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s affected rows: %w", table, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func columnsOf(table models.Table) ([]string, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown table %s", table))
	}
	return cols, nil
}

func hasColumn(table models.Table, column string) bool {
	for _, col := range tableColumns[table] {
		if col == column {
			return true
		}
	}
	return false
}

func checkColumns(table models.Table, row models.Row) error {
	if _, err := columnsOf(table); err != nil {
		return err
	}
	for col := range row {
		if !hasColumn(table, col) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown column %s.%s", table, col))
		}
	}
	return nil
}
