// Package usage holds the rolling-window arithmetic and tier limit table
// shared by every metered endpoint.
package usage

import "time"

// Window is the length of a tier's rolling usage window.
const Window = 24 * time.Hour

// Counter is the persisted usage pair for one tier.
// WindowStart is nil iff Count is 0.
type Counter struct {
	Count       int
	WindowStart *time.Time
}

// Apply returns the counter as it should be seen at now. A missing window
// or one that started more than Window ago reads as empty. A request at
// exactly WindowStart+Window is still inside the old window.
func Apply(now time.Time, c Counter) Counter {
	if c.WindowStart == nil {
		return Counter{}
	}
	if now.Sub(*c.WindowStart) > Window {
		return Counter{}
	}
	return c
}

// ResetAt returns when the counter's window ends. ok is false for an empty counter.
func ResetAt(c Counter) (t time.Time, ok bool) {
	if c.WindowStart == nil {
		return time.Time{}, false
	}
	return c.WindowStart.Add(Window), true
}

// Expired reports whether a window that started at start has lapsed at now.
func Expired(now, start time.Time) bool {
	return now.Sub(start) > Window
}
