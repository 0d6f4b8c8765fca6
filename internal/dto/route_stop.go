package dto

// MoveDirection moves a stop one position earlier or later on its route.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// MoveStopRequest is the payload for reordering a route stop.
type MoveStopRequest struct {
	Direction MoveDirection `json:"direction"`
}
