package catalog

import "fmt"

// DurationUnit is the unit of a lead-time range.
type DurationUnit string

const (
	UnitDays   DurationUnit = "days"
	UnitWeeks  DurationUnit = "weeks"
	UnitMonths DurationUnit = "months"
)

func (u DurationUnit) days() int {
	switch u {
	case UnitDays:
		return 1
	case UnitWeeks:
		return 7
	case UnitMonths:
		return 30
	default:
		return 0
	}
}

// Duration is a structured processing-time range such as 4-8 weeks.
type Duration struct {
	Min  int          `yaml:"min" json:"min"`
	Max  int          `yaml:"max" json:"max"`
	Unit DurationUnit `yaml:"unit" json:"unit"`
}

// Validate checks that the range is well formed.
func (d Duration) Validate() error {
	if d.Unit.days() == 0 {
		return fmt.Errorf("lead time: unknown unit %q", d.Unit)
	}
	if d.Min < 0 || d.Max < d.Min {
		return fmt.Errorf("lead time: invalid range %d-%d", d.Min, d.Max)
	}
	return nil
}

// MinDays returns the lower bound in days.
func (d Duration) MinDays() int { return d.Min * d.Unit.days() }

// MaxDays returns the upper bound in days.
func (d Duration) MaxDays() int { return d.Max * d.Unit.days() }

// String renders the range in English, e.g. "4-8 weeks".
func (d Duration) String() string {
	if d.Min == d.Max {
		return fmt.Sprintf("%d %s", d.Max, d.Unit)
	}
	return fmt.Sprintf("%d-%d %s", d.Min, d.Max, d.Unit)
}

// Less orders durations by lead-time priority: the longer upper bound first,
// then the longer lower bound.
func (d Duration) Less(other Duration) bool {
	if d.MaxDays() != other.MaxDays() {
		return d.MaxDays() > other.MaxDays()
	}
	return d.MinDays() > other.MinDays()
}
