package clock

import (
	"testing"
	"time"
)

func TestRealClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	if got := NewReal(loc).Now().Location(); got != loc {
		t.Fatalf("expected %s, got %s", loc, got)
	}
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewFixed(at)
	if !c.Now().Equal(at) || !c.Now().Equal(c.Now()) {
		t.Fatalf("fixed clock moved")
	}
}

func TestFuncClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	c := Func(func() time.Time {
		calls++
		return at.Add(time.Duration(calls) * time.Minute)
	})
	c.Now()
	if got := c.Now(); !got.Equal(at.Add(2 * time.Minute)) {
		t.Fatalf("got %s", got)
	}
}
