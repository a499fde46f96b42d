package service

import (
	"errors"
	"time"

	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
)

// ErrCascadeOriginMissing the edited schedule is not part of its own series
var ErrCascadeOriginMissing = errors.New("cascade origin not found in series")

// CascadePlan date shifts for the rest of a series
type CascadePlan struct {
	DayDiff int
	Shifts  []repository.DateShift
}

// CalendarDayDiff whole calendar days from oldDate to newDate, both read
// as dates in loc. Time of day does not matter.
func CalendarDayDiff(oldDate, newDate time.Time, loc *time.Location) int {
	oy, om, od := oldDate.In(loc).Date()
	ny, nm, nd := newDate.In(loc).Date()
	start := time.Date(oy, om, od, 0, 0, 0, 0, time.UTC)
	end := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// PlanCascade works out how the later sessions of original's
// subject+institution series move when original moves to newDate.
// Candidates keep their time of day in loc; only the calendar day changes.
func PlanCascade(original model.Schedule, newDate time.Time, series []model.Schedule, loc *time.Location) (CascadePlan, error) {
	if original.Date == nil {
		return CascadePlan{}, nil
	}

	plan := CascadePlan{DayDiff: CalendarDayDiff(*original.Date, newDate, loc)}
	if plan.DayDiff == 0 {
		return plan, nil
	}

	found := false
	for i := range series {
		if series[i].ScheduleID == original.ScheduleID {
			found = true
			break
		}
	}
	if !found {
		return CascadePlan{}, ErrCascadeOriginMissing
	}

	for i := range series {
		cand := &series[i]
		if cand.ScheduleID == original.ScheduleID ||
			cand.Subject != original.Subject ||
			cand.Institution != original.Institution ||
			cand.Date == nil ||
			!cand.Date.After(*original.Date) {
			continue
		}
		plan.Shifts = append(plan.Shifts, repository.DateShift{
			ScheduleID: cand.ScheduleID,
			Date:       cand.Date.In(loc).AddDate(0, 0, plan.DayDiff),
		})
	}
	return plan, nil
}
