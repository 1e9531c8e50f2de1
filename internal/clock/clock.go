// Package clock abstracts time so jobs and tests can run against an
// injected "now" instead of the wall clock.
package clock

import "time"

// Clock supplies the current time. All timestamps in the system are UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
