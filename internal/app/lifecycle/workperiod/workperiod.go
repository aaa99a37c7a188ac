// Package workperiod rebuilds a worker's employment periods from its stored
// history and its current top-level fields.
//
// Periods are keyed by entry day. When two periods share an entry day the more
// complete one wins: exit date and reason > exit date only > neither. The
// canonical form is sorted by entry day with at most one open period.
package workperiod

import (
	"sort"
	"time"

	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Period is a canonical period with its elapsed day count.
type Period struct {
	models.WorkPeriod
	Days int `json:"days"`
}

// Timeline is the reconstructed history of one worker.
type Timeline struct {
	Periods   []Period `json:"periods"`
	TotalDays int      `json:"total_days"`
}

// FromWorker synthesizes the period described by the worker's top-level fields.
func FromWorker(w models.Worker) models.WorkPeriod {
	p := models.WorkPeriod{
		EntryDate:  models.DayOf(w.EntryDate),
		RoomNumber: w.RoomNumber,
		Sector:     w.Sector,
		FarmID:     w.FarmID,
	}
	if w.ExitDate != nil {
		d := models.DayOf(*w.ExitDate)
		p.ExitDate = &d
		p.ExitReason = w.ExitReason
	}
	return p
}

// Canonical merges the stored history with the worker's current period and
// returns the deduplicated, sorted list. A worker without an entry date has
// no periods.
func Canonical(w models.Worker) []models.WorkPeriod {
	if w.EntryDate.IsZero() {
		return nil
	}
	periods := clonePeriods(w.WorkHistory)
	if indexOfEntry(periods, w.EntryDate) < 0 {
		periods = append(periods, FromWorker(w))
	}
	return Normalize(periods)
}

// Normalize deduplicates periods by entry day using the completeness ranking
// and sorts them ascending. Input that is already canonical comes back equal.
func Normalize(periods []models.WorkPeriod) []models.WorkPeriod {
	if len(periods) == 0 {
		return nil
	}
	byDay := make(map[time.Time]int, len(periods))
	out := make([]models.WorkPeriod, 0, len(periods))
	for _, p := range periods {
		if p.EntryDate.IsZero() {
			continue
		}
		key := models.DayOf(p.EntryDate)
		if i, ok := byDay[key]; ok {
			if completeness(p) > completeness(out[i]) {
				out[i] = p
			}
			continue
		}
		byDay[key] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EntryDate.Before(out[j].EntryDate)
	})
	return out
}

// completeness ranks a period for deduplication.
func completeness(p models.WorkPeriod) int {
	switch {
	case p.ExitDate != nil && p.ExitReason != "":
		return 2
	case p.ExitDate != nil:
		return 1
	}
	return 0
}

// Days returns the whole days elapsed in p, measured to now when the period is
// open. Negative spans (clock skew, bad data) clamp to zero.
func Days(p models.WorkPeriod, now time.Time) int {
	end := now
	if p.ExitDate != nil {
		end = *p.ExitDate
	}
	d := int(models.DayOf(end).Sub(models.DayOf(p.EntryDate)).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Reconstruct returns the canonical timeline of w with day counts as of now.
func Reconstruct(w models.Worker, now time.Time) Timeline {
	var tl Timeline
	for _, p := range Canonical(w) {
		d := Days(p, now)
		tl.Periods = append(tl.Periods, Period{WorkPeriod: p, Days: d})
		tl.TotalDays += d
	}
	return tl
}

// Close closes the open period that started on entry. When no such period
// exists a closed period is synthesized from fallback and anomaly is true.
func Close(history []models.WorkPeriod, entry, exit time.Time, reason string, fallback models.WorkPeriod) (out []models.WorkPeriod, anomaly bool) {
	out = clonePeriods(history)
	exitDay := models.DayOf(exit)
	for i := range out {
		if out[i].IsOpen() && models.SameDay(out[i].EntryDate, entry) {
			out[i].ExitDate = &exitDay
			out[i].ExitReason = reason
			return Normalize(out), false
		}
	}
	// A period with this entry day may already be closed (exit date edited).
	if i := indexOfEntry(out, entry); i >= 0 {
		out[i].ExitDate = &exitDay
		out[i].ExitReason = reason
		return Normalize(out), false
	}
	p := fallback
	p.EntryDate = models.DayOf(entry)
	p.ExitDate = &exitDay
	p.ExitReason = reason
	return Normalize(append(out, p)), true
}

// Reopen closes every open period (an open period without an exit date gets
// its own entry date as a degenerate exit) and appends next as the new open
// period. Callers check Overlap first; a recorded closure on next's entry day
// is left in place and no period is opened.
func Reopen(history []models.WorkPeriod, next models.WorkPeriod) []models.WorkPeriod {
	out := clonePeriods(history)
	for i := range out {
		if out[i].IsOpen() {
			d := models.DayOf(out[i].EntryDate)
			out[i].ExitDate = &d
		}
	}
	next.EntryDate = models.DayOf(next.EntryDate)
	next.ExitDate = nil
	next.ExitReason = ""
	// A reopen on the exact day of an earlier entry replaces that period only
	// when it is a degenerate stub; a recorded closure is kept.
	if i := indexOfEntry(out, next.EntryDate); i >= 0 {
		if !isStub(out[i]) {
			return Normalize(out)
		}
		out = append(out[:i], out[i+1:]...)
	}
	return Normalize(append(out, next))
}

// isStub reports whether p was closed on its own entry day with no reason.
func isStub(p models.WorkPeriod) bool {
	return p.ExitDate != nil && p.ExitReason == "" && models.SameDay(*p.ExitDate, p.EntryDate)
}

// Overlap returns the first closed period, ignoring the one that started on
// current, that a stay starting on day would collide with: day falls before
// its exit or on its entry day. A zero current ignores nothing.
func Overlap(history []models.WorkPeriod, current, day time.Time) (models.WorkPeriod, bool) {
	day = models.DayOf(day)
	for _, p := range history {
		if p.ExitDate == nil {
			continue
		}
		if !current.IsZero() && models.SameDay(p.EntryDate, current) {
			continue
		}
		if day.Before(models.DayOf(*p.ExitDate)) || models.SameDay(p.EntryDate, day) {
			return p, true
		}
	}
	return models.WorkPeriod{}, false
}

// Retime moves the open period that started on from so it starts on to.
// It is used when an active worker's entry date is corrected.
func Retime(history []models.WorkPeriod, from, to time.Time) []models.WorkPeriod {
	out := clonePeriods(history)
	for i := range out {
		if models.SameDay(out[i].EntryDate, from) {
			out[i].EntryDate = models.DayOf(to)
			break
		}
	}
	return Normalize(out)
}

// Relabel copies farm, room and sector onto the period that started on
// entry, so history follows assignment edits of the current stay.
func Relabel(history []models.WorkPeriod, entry time.Time, farmID primitive.ObjectID, room, sector string) []models.WorkPeriod {
	out := clonePeriods(history)
	for i := range out {
		if models.SameDay(out[i].EntryDate, entry) {
			out[i].FarmID = farmID
			out[i].RoomNumber = room
			out[i].Sector = sector
		}
	}
	return out
}

// Unclose clears the exit of the period that started on entry. It is used
// when a scheduled exit is cancelled before it takes effect.
func Unclose(history []models.WorkPeriod, entry time.Time) []models.WorkPeriod {
	out := clonePeriods(history)
	for i := range out {
		if models.SameDay(out[i].EntryDate, entry) {
			out[i].ExitDate = nil
			out[i].ExitReason = ""
		}
	}
	return out
}

// OpenCount returns the number of open periods.
func OpenCount(periods []models.WorkPeriod) int {
	n := 0
	for _, p := range periods {
		if p.IsOpen() {
			n++
		}
	}
	return n
}

func indexOfEntry(periods []models.WorkPeriod, entry time.Time) int {
	for i, p := range periods {
		if models.SameDay(p.EntryDate, entry) {
			return i
		}
	}
	return -1
}

func clonePeriods(in []models.WorkPeriod) []models.WorkPeriod {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.WorkPeriod, len(in))
	copy(out, in)
	for i := range out {
		if in[i].ExitDate != nil {
			d := *in[i].ExitDate
			out[i].ExitDate = &d
		}
	}
	return out
}
