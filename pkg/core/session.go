// pkg/core/session.go
package core

import "time"

// Session describes one continuous run of a turret controller.
type Session struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Turret    string    `json:"turret"`
	StartTime time.Time `json:"startTime"`
	TickRate  float64   `json:"tickRate"`
}
