package models

import (
	"fmt"
	"time"
)

type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Next returns the timestamp one interval step after from. Daily and weekly
// step by fixed wall-clock spans; monthly follows the calendar with
// time.AddDate's normalization for short months.
func (i Interval) Next(from int64) (int64, error) {
	t := time.UnixMilli(from).UTC()
	switch i {
	case IntervalDaily:
		return t.AddDate(0, 0, 1).UnixMilli(), nil
	case IntervalWeekly:
		return t.AddDate(0, 0, 7).UnixMilli(), nil
	case IntervalMonthly:
		return t.AddDate(0, 1, 0).UnixMilli(), nil
	default:
		return 0, fmt.Errorf("unknown interval %q", i)
	}
}

func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// RecurringTemplate is the schedule for an automatically materialized
// transaction. NextRunAt always points at the next un-materialized
// occurrence; the materializer advances it by exactly one interval step per
// created transaction, never skipping and never repeating.
type RecurringTemplate struct {
	ID          string   `json:"id"`
	AccountID   string   `json:"accountId"`
	Description string   `json:"description"`
	Amount      int64    `json:"amount"` // minor currency units
	Kind        string   `json:"kind"`   // income or expense
	Category    string   `json:"category,omitempty"`
	Interval    Interval `json:"interval"`
	StartDate   int64    `json:"startDate"` // unix millis
	NextRunAt   int64    `json:"nextRunAt"`
	LastRunAt   int64    `json:"lastRunAt,omitempty"`
	IsActive    bool     `json:"isActive"`
	RunCount    int64    `json:"runCount"`
}

// Due reports whether the template has an occurrence at or before now.
func (t *RecurringTemplate) Due(now int64) bool {
	return t.IsActive && t.NextRunAt <= now
}

// Advance records one materialized occurrence: LastRunAt moves to the
// occurrence just produced, RunCount increments, and NextRunAt steps forward
// by one interval.
func (t *RecurringTemplate) Advance() error {
	next, err := t.Interval.Next(t.NextRunAt)
	if err != nil {
		return err
	}
	t.LastRunAt = t.NextRunAt
	t.NextRunAt = next
	t.RunCount++
	return nil
}

// TemplateFromRecord decodes a template from its record envelope.
func TemplateFromRecord(rec *Record) (*RecurringTemplate, error) {
	var t RecurringTemplate
	if err := rec.DecodeFields(&t); err != nil {
		return nil, err
	}
	t.ID = rec.ID
	return &t, nil
}
