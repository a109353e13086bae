package crm

import (
	"fmt"
	"time"
)

// Call is a logged call against a lead. Calls are read-only.
type Call struct {
	ID       int64
	LeadRef  string
	Duration time.Duration
	Outcome  string
}

// DurationLabel renders the duration in whole minutes ("12m"), or seconds under a minute
func (c Call) DurationLabel() string {
	if c.Duration < time.Minute {
		return fmt.Sprintf("%ds", int(c.Duration.Seconds()))
	}
	return fmt.Sprintf("%dm", int(c.Duration.Minutes()))
}

// Summary renders "12m - Meeting Set"
func (c Call) Summary() string {
	return c.DurationLabel() + " - " + c.Outcome
}
