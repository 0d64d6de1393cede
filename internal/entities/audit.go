package entities

import "time"

type CirculationAction string

const (
	ActionLend       CirculationAction = "lend"
	ActionReturn     CirculationAction = "return"
	ActionRestock    CirculationAction = "restock"
	ActionRetire     CirculationAction = "retire"
	ActionDeactivate CirculationAction = "deactivate"
	ActionReactivate CirculationAction = "reactivate"
)

type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// CirculationEvent is an append-only record of who did what at the desk.
// Loans themselves are the authoritative lending history; events add the
// operator trail for operations that do not create a loan row.
type CirculationEvent struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Action      CirculationAction `gorm:"index;size:30" json:"action"`
	OperatorID  string            `gorm:"index;size:64" json:"operator_id"`
	EntityType  string            `gorm:"size:30" json:"entity_type"` // "book", "borrower", "loan"
	EntityID    string            `gorm:"index;size:64" json:"entity_id"`
	Description string            `gorm:"size:500" json:"description"`
	Status      EventStatus       `gorm:"size:20" json:"status"`
	ErrorMsg    string            `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

func (CirculationEvent) TableName() string {
	return "circulation_events"
}
