package entity

import "time"

// SessionStatus is one row of the status page.
type SessionStatus struct {
	Name     string
	Progress Progress
}

type StatusPage struct {
	Title     string
	Sessions  []SessionStatus
	Generated time.Time
}
