package order

import "time"

// EventKind names a lifecycle change worth telling the parties about.
type EventKind string

const (
	EventPlaced    EventKind = "placed"
	EventConfirmed EventKind = "confirmed"
	EventCompleted EventKind = "completed"
)

// Event is emitted after a lifecycle change has been committed.
type Event struct {
	ID         string
	Kind       EventKind
	OrderID    string
	BuyerID    string
	SupplierID string
	OccurredAt time.Time
}

// Notifier accepts lifecycle events. Notify must not block and must not
// report delivery failures back to the caller.
type Notifier interface {
	Notify(ev Event)
}
