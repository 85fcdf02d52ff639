// Package clock supplies "now" to services so period resolution never reads
// the system clock implicitly.
//
// Services take a Clock; cmd wires Real in the configured timezone and tests
// wire Fixed.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time in Location (local when nil).
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// Func adapts a function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// NewReal returns the system clock viewed from loc.
func NewReal(loc *time.Location) Clock {
	return RealClock{Location: loc}
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) Clock {
	return FixedClock{T: t}
}

var (
	_ Clock = RealClock{}
	_ Clock = FixedClock{}
	_ Clock = Func(nil)
)
