// This file implements the strategy pattern for recurring expense dueness.
// Each frequency has its own checker deciding whether a calendar month is a
// billing month for a template that started in start.

package services

import (
	"fmt"
	"time"

	"bizdash/internal/core"
)

// DuenessChecker decides whether month is a billing month. Both arguments
// are first-of-month instants.
type DuenessChecker interface {
	IsDue(start, month time.Time) bool
}

// MonthlyChecker bills every month.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(start, month time.Time) bool {
	return !month.Before(start)
}

// QuarterlyChecker bills every third month counted from start.
type QuarterlyChecker struct{}

func (QuarterlyChecker) IsDue(start, month time.Time) bool {
	n := core.MonthsBetween(start, month)
	return n >= 0 && n%3 == 0
}

// YearlyChecker bills on the anniversary month of start.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(start, month time.Time) bool {
	n := core.MonthsBetween(start, month)
	return n >= 0 && n%12 == 0
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Monthly:   MonthlyChecker{},
	core.Quarterly: QuarterlyChecker{},
	core.Yearly:    YearlyChecker{},
}

// GetDuenessChecker returns the checker for frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker for a frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
