package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBatchSize    = 25
	DefaultSendDelayMin = 20 * time.Second
	DefaultSendDelayMax = 30 * time.Second
)

// Campaign is the configuration bundle for one engine instance. It is loaded
// once at startup and immutable for the duration of every run.
type Campaign struct {
	ID            string
	BatchSize     int
	SendDelayMin  time.Duration
	SendDelayMax  time.Duration
	Subject       string
	Body          string
	FieldFallback string
	Schedule      Schedule
	SheetRange    string
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: campaign id is required", ErrValidation)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrValidation)
	}
	if c.SendDelayMin <= 0 || c.SendDelayMax < c.SendDelayMin {
		return fmt.Errorf("%w: send delay range [%s, %s] is invalid", ErrValidation, c.SendDelayMin, c.SendDelayMax)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("%w: subject template is required", ErrValidation)
	}
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("%w: body template is required", ErrValidation)
	}
	return c.Schedule.Validate()
}

// Schedule describes the recurring daily send window: a time of day in a
// fixed timezone, optionally skipping Saturday and Sunday.
type Schedule struct {
	Hour         int
	Minute       int
	Location     *time.Location
	SkipWeekends bool
}

// ParseScheduleAt parses an "HH:MM" time-of-day expression.
func ParseScheduleAt(at string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(at), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: schedule %q is not HH:MM", ErrValidation, at)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: schedule hour %q out of range", ErrValidation, parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: schedule minute %q out of range", ErrValidation, parts[1])
	}
	return hour, minute, nil
}

func (s Schedule) Validate() error {
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: schedule time %02d:%02d out of range", ErrValidation, s.Hour, s.Minute)
	}
	if s.Location == nil {
		return fmt.Errorf("%w: schedule timezone is required", ErrValidation)
	}
	return nil
}

// Next returns the first occurrence strictly after t, evaluated in the
// schedule's timezone. Weekend occurrences are dropped when SkipWeekends is
// set, never deferred to Monday's slot twice.
func (s Schedule) Next(t time.Time) time.Time {
	local := t.In(s.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	if s.SkipWeekends {
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}
