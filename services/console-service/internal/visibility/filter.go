// Package visibility computes which appointments an actor sees for a day.
package visibility

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
)

// AllProfessionals is the administrative filter value that disables the
// per-professional restriction.
const AllProfessionals = "all"

// DayBounds returns the inclusive [00:00:00.000, 23:59:59.999] range of the
// calendar day of date in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}

// Visible filters appts to the selected day and to what actor may see, sorted
// ascending by date. Professionals only ever see their own records; filter
// applies to administrative actors only.
func Visible(appts []salon.Appointment, actor salon.Actor, selectedDate time.Time, filter string, loc *time.Location) []salon.Appointment {
	if actor == nil {
		return nil
	}
	start, end := DayBounds(selectedDate, loc)

	out := make([]salon.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Date.Before(start) || a.Date.After(end) {
			continue
		}
		if !sees(actor, filter, a) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sees(actor salon.Actor, filter string, a salon.Appointment) bool {
	switch v := actor.(type) {
	case salon.Professional:
		return a.Professional.ID == v.ID
	case salon.Admin, salon.SuperAdmin:
		return filter == "" || filter == AllProfessionals || a.Professional.ID == filter
	default:
		return false
	}
}

// PastDue returns the scheduled records whose start is already behind now.
func PastDue(visible []salon.Appointment, now time.Time) []salon.Appointment {
	var out []salon.Appointment
	for _, a := range visible {
		if a.Status == salon.StatusScheduled && a.Date.Before(now) {
			out = append(out, a)
		}
	}
	return out
}

// Summary aggregates a visible day.
type Summary struct {
	Total           int                  `json:"total"`
	ByStatus        map[salon.Status]int `json:"by_status"`
	PendingPayments int                  `json:"pending_payments"`
	PaidCents       int64                `json:"paid_cents"`
}

func Summarize(visible []salon.Appointment) Summary {
	s := Summary{ByStatus: map[salon.Status]int{}}
	for _, a := range visible {
		s.Total++
		s.ByStatus[a.Status]++
		if a.Status != salon.StatusCompleted {
			continue
		}
		switch a.PaymentStatus {
		case salon.PaymentPaid:
			s.PaidCents += a.Service.PriceCents
		default:
			s.PendingPayments++
		}
	}
	return s
}
