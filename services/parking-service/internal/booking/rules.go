package booking

import (
	"fmt"

	"github.com/slotpark/slotpark/libs/config"
)

// Rules are the process-wide admission constants. They are read once at
// startup and never mutated afterwards.
type Rules struct {
	MinDurationHours float64
	MaxDurationHours float64
	MaxAdvanceDays   int
	CancelGraceHours float64
}

func RulesFromEnv() (Rules, error) {
	minHours, err := config.Float("MIN_DURATION_HOURS", 1)
	if err != nil {
		return Rules{}, err
	}
	maxHours, err := config.Float("MAX_DURATION_HOURS", 168)
	if err != nil {
		return Rules{}, err
	}
	advanceDays, err := config.Int("MAX_ADVANCE_DAYS", 30)
	if err != nil {
		return Rules{}, err
	}
	graceHours, err := config.Float("CANCELLATION_GRACE_HOURS", 1)
	if err != nil {
		return Rules{}, err
	}

	r := Rules{
		MinDurationHours: minHours,
		MaxDurationHours: maxHours,
		MaxAdvanceDays:   advanceDays,
		CancelGraceHours: graceHours,
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r Rules) Validate() error {
	if r.MinDurationHours <= 0 {
		return fmt.Errorf("MIN_DURATION_HOURS must be positive (got %g)", r.MinDurationHours)
	}
	if r.MaxDurationHours < r.MinDurationHours {
		return fmt.Errorf("MAX_DURATION_HOURS %g is below MIN_DURATION_HOURS %g", r.MaxDurationHours, r.MinDurationHours)
	}
	if r.MaxAdvanceDays < 0 {
		return fmt.Errorf("MAX_ADVANCE_DAYS must not be negative (got %d)", r.MaxAdvanceDays)
	}
	if r.CancelGraceHours < 0 {
		return fmt.Errorf("CANCELLATION_GRACE_HOURS must not be negative (got %g)", r.CancelGraceHours)
	}
	return nil
}
