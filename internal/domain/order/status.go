package order

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPlaced is the state of a freshly finalized order.
	StatusPlaced Status = "PLACED"
	// StatusConfirmed means the supplier accepted the order and its stock
	// has been committed.
	StatusConfirmed Status = "CONFIRMED"
	// StatusCompleted means the buyer received the goods.
	StatusCompleted Status = "COMPLETED"
)

// next lists the only state each status may advance to.
var next = map[Status]Status{
	StatusPlaced:    StatusConfirmed,
	StatusConfirmed: StatusCompleted,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether an order in state from may move to to.
// Transitions are forward-only and never skip a state.
func CanTransition(from, to Status) bool {
	n, ok := next[from]
	return ok && n == to
}
