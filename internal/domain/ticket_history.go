package domain

import "time"

// HistoryAction captures what kind of mutation a history entry documents.
type HistoryAction string

const (
	HistoryActionCreate      HistoryAction = "create"
	HistoryActionUpdate      HistoryAction = "update"
	HistoryActionRoute       HistoryAction = "route"
	HistoryActionAddResponse HistoryAction = "add_response"
)

// TicketHistory is an immutable audit trail entry. ActorID is nil for
// system or AI initiated mutations. OldValue/NewValue carry only the fields
// that actually changed, keyed identically, so the diff is reconstructable
// without consulting external state.
type TicketHistory struct {
	ID        string
	TicketID  string
	ActorID   *string
	Action    HistoryAction
	OldValue  map[string]any
	NewValue  map[string]any
	CreatedAt time.Time
}
