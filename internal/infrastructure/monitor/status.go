package monitor

import "time"

// Status is a point-in-time snapshot of dependency health.
type Status struct {
	PostgreSQL          bool      `json:"postgresql"`
	Redis               bool      `json:"redis"`
	NotifyBuffer        bool      `json:"notify_buffer"`
	PendingRedeliveries int       `json:"pending_redeliveries"`
	LastCheck           time.Time `json:"last_check"`
}
