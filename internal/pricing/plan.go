package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPlan is returned for plans that cannot be priced.
var ErrInvalidPlan = errors.New("pricing: invalid plan")

// Interval is a billing period.
type Interval string

const (
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

// ParseInterval accepts the backend's billing_interval values.
func ParseInterval(s string) (Interval, error) {
	switch iv := Interval(strings.ToLower(strings.TrimSpace(s))); iv {
	case Monthly, Quarterly, Yearly:
		return iv, nil
	}
	return "", fmt.Errorf("%w: unknown interval %q", ErrInvalidPlan, s)
}

// Months is the length of the interval in months.
func (i Interval) Months() int {
	switch i {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Yearly:
		return 12
	}
	return 0
}

// Plan is a recurring subscription offer. Price is charged once per
// Interval, less DiscountPercent. Zero Cycles means open-ended.
type Plan struct {
	Price           float64
	Interval        Interval
	Cycles          int
	DiscountPercent float64
}

// Validate reports why p cannot be priced.
func (p Plan) Validate() error {
	if p.Interval.Months() == 0 {
		return fmt.Errorf("%w: unknown interval %q", ErrInvalidPlan, p.Interval)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidPlan)
	}
	if p.Cycles < 0 {
		return fmt.Errorf("%w: negative cycles", ErrInvalidPlan)
	}
	if p.DiscountPercent < 0 || p.DiscountPercent > 100 {
		return fmt.Errorf("%w: discount must be within 0..100", ErrInvalidPlan)
	}
	return nil
}

// PerCycle is the amount charged each interval.
func (p Plan) PerCycle() float64 {
	_, _, total := CalculateLineTotals(1, p.Price, p.DiscountPercent, 0)
	return Round(total)
}

// MonthlyEquivalent spreads PerCycle over the months of the interval.
func (p Plan) MonthlyEquivalent() float64 {
	months := p.Interval.Months()
	if months == 0 {
		return 0
	}
	return Round(p.PerCycle() / float64(months))
}

// Total is the amount charged over the whole plan. ok is false for
// open-ended plans.
func (p Plan) Total() (total float64, ok bool) {
	if p.Cycles == 0 {
		return 0, false
	}
	return Round(p.PerCycle() * float64(p.Cycles)), true
}

// Schedule lists up to n billing dates starting at start, bounded by Cycles
// when set. Dates that fall past the end of a shorter month are clamped to
// its last day.
func (p Plan) Schedule(start time.Time, n int) []time.Time {
	months := p.Interval.Months()
	if months == 0 || n <= 0 {
		return nil
	}
	if p.Cycles > 0 && n > p.Cycles {
		n = p.Cycles
	}
	dates := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, addMonths(start, i*months))
	}
	return dates
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
