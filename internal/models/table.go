package models

// Table names a relational table reachable through the data gateway.
type Table string

const (
	TablePriceChangeRequests Table = "price_change_requests"
	TableHubRequests         Table = "hub_requests"
	TableStopRequests        Table = "stop_requests"
	TableRoutes              Table = "routes"
	TableHubs                Table = "hubs"
	TableStops               Table = "stops"
	TableRouteStops          Table = "route_stops"
	TableProfiles            Table = "profiles"
)

// Row is a column → value mapping used for inserts, patches and filters.
type Row map[string]interface{}

// Query narrows a List call. Filter holds equality conditions.
type Query struct {
	Filter  Row
	OrderBy string
	Desc    bool
	Limit   int
}
