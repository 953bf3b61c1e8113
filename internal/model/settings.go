package model

import "time"

// UserSettings carries the per-user flags consulted by the scheduler and
// synchronizer. VacationMode is a durable field read fresh each cycle so it
// survives restarts and works across multiple scheduler instances.
type UserSettings struct {
	UserID          string     `json:"user_id"`
	VacationMode    bool       `json:"vacation_mode"`
	LastReconciled  *time.Time `json:"last_reconciled_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
