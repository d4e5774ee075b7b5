// Package calendar turns the scheduling service's appointment list for a
// visible month into the day-bucketed view model the calendar page renders,
// and owns the per-session view state that discards stale loads.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aioc/hospital-console/internal/domain/scheduling"
)

// Display values used when an appointment carries no patient name, no notes
// or no doctor name.
const (
	FallbackPatient = "Unknown"
	FallbackType    = "Appointment"
	FallbackDoctor  = "—"
)

// DisplayAppointment is the fallback-filled projection of an appointment
// used for rendering one calendar entry.
type DisplayAppointment struct {
	ID        int               `json:"id"`
	PatientID int               `json:"patient_id"`
	Time      string            `json:"time"`
	Patient   string            `json:"patient"`
	Type      string            `json:"type"`
	Doctor    string            `json:"doctor"`
	Status    scheduling.Status `json:"status"`
}

// Map buckets display appointments by DateKey. A Map is never modified
// after BuildCalendar returns it.
type Map map[string][]DisplayAppointment

// Count returns the number of appointments across all buckets.
func (m Map) Count() int {
	n := 0
	for _, b := range m {
		n += len(b)
	}
	return n
}

// Keys returns the bucket keys in ascending date order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DayCounts returns the size of every bucket.
func (m Map) DayCounts() map[string]int {
	out := make(map[string]int, len(m))
	for k, b := range m {
		out[k] = len(b)
	}
	return out
}

// DateKey formats a bucket key. monthIndex is zero-based (0 = January) and is
// rendered one-based.
func DateKey(year, monthIndex, day int) string {
	return fmt.Sprintf("%d-%02d-%02d", year, monthIndex+1, day)
}

// KeyOf returns the bucket key of t's calendar date.
func KeyOf(t time.Time) string {
	return DateKey(t.Year(), int(t.Month())-1, t.Day())
}

// Display projects a into its rendered form at local time t.
func Display(a scheduling.Appointment, t time.Time) DisplayAppointment {
	d := DisplayAppointment{
		ID:        a.ID,
		PatientID: a.PatientID,
		Time:      fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()),
		Patient:   FallbackPatient,
		Type:      FallbackType,
		Doctor:    FallbackDoctor,
		Status:    a.Status,
	}
	if a.PatientName != nil {
		d.Patient = *a.PatientName
	}
	if a.Notes != nil {
		d.Type = *a.Notes
	}
	if a.DoctorDisplayName != nil {
		d.Doctor = *a.DoctorDisplayName
	}
	return d
}

// BuildCalendar buckets appts by their local date in loc and orders each
// bucket by time of day. Appointments sharing a time keep their input order.
// A nil loc means time.Local.
func BuildCalendar(appts []scheduling.Appointment, loc *time.Location) Map {
	if loc == nil {
		loc = time.Local
	}
	m := make(Map)
	for _, a := range appts {
		local := a.ScheduledAt.In(loc)
		key := KeyOf(local)
		m[key] = append(m[key], Display(a, local))
	}
	for _, b := range m {
		sort.SliceStable(b, func(i, j int) bool { return b[i].Time < b[j].Time })
	}
	return m
}

// UnknownStatuses returns the statuses in appts outside the four the
// scheduling service defines, once each, in first-seen order.
func UnknownStatuses(appts []scheduling.Appointment) []scheduling.Status {
	var out []scheduling.Status
	seen := make(map[scheduling.Status]bool)
	for _, a := range appts {
		if a.Status.Known() || seen[a.Status] {
			continue
		}
		seen[a.Status] = true
		out = append(out, a.Status)
	}
	return out
}

// ---------------------------------------------------------------------------
// Filtering
// ---------------------------------------------------------------------------

// ErrUnknownStatus is returned by ParseStatusFilter for a value that is
// neither "all" nor an appointment status.
var ErrUnknownStatus = errors.New("unknown status filter")

// StatusFilter is either StatusAll or one exact appointment status.
type StatusFilter string

// StatusAll passes every status, including ones the scheduling service does
// not define.
const StatusAll StatusFilter = "all"

// ParseStatusFilter accepts "", "all" and the four appointment statuses.
func ParseStatusFilter(s string) (StatusFilter, error) {
	if s == "" || s == string(StatusAll) {
		return StatusAll, nil
	}
	if st := scheduling.Status(s); st.Known() {
		return StatusFilter(st), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
}

// Match reports whether st passes the filter.
func (f StatusFilter) Match(st scheduling.Status) bool {
	return f == StatusAll || f == "" || scheduling.Status(f) == st
}

// FilterBucket returns the appointments of bucket whose patient contains
// patientQuery, ignoring case, and whose status passes status. The query is
// matched literally, so whitespace is significant. The result is always a
// new slice in bucket order.
func FilterBucket(bucket []DisplayAppointment, patientQuery string, status StatusFilter) []DisplayAppointment {
	q := strings.ToLower(patientQuery)
	out := make([]DisplayAppointment, 0, len(bucket))
	for _, a := range bucket {
		if q != "" && !strings.Contains(strings.ToLower(a.Patient), q) {
			continue
		}
		if !status.Match(a.Status) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// PatientSuggestions returns the distinct patient names in m containing
// query, ignoring case, sorted, minus exclude. An empty query suggests
// nothing.
func PatientSuggestions(m Map, query, exclude string) []string {
	out := []string{}
	if query == "" {
		return out
	}
	q := strings.ToLower(query)
	seen := make(map[string]bool)
	for _, b := range m {
		for _, a := range b {
			if seen[a.Patient] {
				continue
			}
			seen[a.Patient] = true
			if a.Patient != exclude && strings.Contains(strings.ToLower(a.Patient), q) {
				out = append(out, a.Patient)
			}
		}
	}
	sort.Strings(out)
	return out
}
