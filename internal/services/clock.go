package services

import "time"

// Clock supplies the current time. Every timing decision in the attendance
// engine goes through an injected Clock so tests can pin the time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall-clock implementation used in production.
func SystemClock() Clock { return systemClock{} }
