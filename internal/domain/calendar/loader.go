package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/domain/scheduling"
	"github.com/aioc/hospital-console/internal/platform/metrics"
	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// Source is the scheduling service's calendar-range query.
type Source interface {
	Calendar(ctx context.Context, sess *session.Session, q scheduling.CalendarQuery) (*upstream.List[scheduling.Appointment], error)
}

// Query is the page state a load is issued for. Day 0 selects today when it
// falls in the month, otherwise the 1st. Patient is the committed patient
// filter; Typed is the text in the search box, used for suggestions only.
type Query struct {
	Year       int
	MonthIndex int
	Day        int
	Patient    string
	Typed      string
	Status     StatusFilter
	DoctorID   int
	PatientID  int
	Location   *time.Location
}

// MonthRef names a month on the wire; Month is one-based.
type MonthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Page is the calendar page view model.
type Page struct {
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	Selected     string               `json:"selected"`
	Weekdays     [7]string            `json:"weekdays"`
	Weeks        [][]int              `json:"weeks"`
	DayCounts    map[string]int       `json:"day_counts"`
	Appointments []DisplayAppointment `json:"appointments"`
	Suggestions  []string             `json:"suggestions"`
	Total        int                  `json:"total"`
	Filtered     int                  `json:"filtered"`
	Prev         MonthRef             `json:"prev"`
	Next         MonthRef             `json:"next"`
	Error        string               `json:"error,omitempty"`
}

// Loader is the calendar page's reload function: it is invoked whenever the
// visible month or a filter changes.
type Loader struct {
	source Source
	views  *Views
	logger zerolog.Logger
	now    func() time.Time
}

func NewLoader(source Source, views *Views, logger zerolog.Logger) *Loader {
	return &Loader{source: source, views: views, logger: logger, now: time.Now}
}

func loadFailureMessage(err error) string {
	switch {
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNoCredential):
		return "Session expired or invalid. Please log in again."
	case errors.Is(err, upstream.ErrForbidden):
		return "You do not have permission to view appointments."
	}
	return "Could not load appointments from the scheduling service."
}

// Load fetches the month, commits it to the session's view and builds the
// page. It returns ErrSuperseded if a newer load for the same session began
// while this one was in flight. A failed fetch is not an error: the page
// falls back to the view's last map for the month and carries a message.
func (l *Loader) Load(ctx context.Context, sess *session.Session, q Query) (*Page, error) {
	loc := q.Location
	if loc == nil {
		loc = time.Local
	}
	month := Month{Year: q.Year, MonthIndex: q.MonthIndex}
	view := l.views.Get(sess.ID)
	token := view.Begin()

	from, to := MonthRange(q.Year, q.MonthIndex, loc)
	list, err := l.source.Calendar(ctx, sess, scheduling.CalendarQuery{
		From:      from,
		To:        to,
		DoctorID:  q.DoctorID,
		PatientID: q.PatientID,
	})

	var m Map
	var failure string
	if err != nil {
		if !view.Current(token) {
			metrics.RecordCalendarLoad("superseded")
			return nil, ErrSuperseded
		}
		l.logger.Warn().Err(err).Str("session_id", sess.ID).Int("year", q.Year).Int("month", q.MonthIndex+1).Msg("calendar load failed")
		metrics.RecordCalendarLoad("error")
		m = view.Fallback(month)
		failure = loadFailureMessage(err)
	} else {
		for _, st := range UnknownStatuses(list.Items) {
			l.logger.Warn().Str("status", string(st)).Msg("appointment with unknown status")
			metrics.RecordUnknownStatus(string(st))
		}
		m = BuildCalendar(list.Items, loc)
		if err := view.Commit(token, month, m); err != nil {
			metrics.RecordCalendarLoad("superseded")
			return nil, err
		}
		metrics.RecordCalendarLoad("ok")
	}

	page := l.page(m, q, loc)
	page.Error = failure
	return page, nil
}

func (l *Loader) page(m Map, q Query, loc *time.Location) *Page {
	grid := BuildMonthGrid(q.Year, q.MonthIndex)
	day := q.Day
	if day < 1 || day > grid.DaysInMonth {
		day = 1
		now := l.now().In(loc)
		if now.Year() == grid.Year && int(now.Month())-1 == grid.MonthIndex {
			day = now.Day()
		}
	}
	selected := grid.Key(day)
	appts := FilterBucket(m[selected], q.Patient, q.Status)

	py, pm := MonthStep(grid.Year, grid.MonthIndex, -1)
	ny, nm := MonthStep(grid.Year, grid.MonthIndex, 1)
	return &Page{
		Year:         grid.Year,
		Month:        grid.MonthIndex + 1,
		Selected:     selected,
		Weekdays:     Weekdays,
		Weeks:        grid.Weeks(),
		DayCounts:    m.DayCounts(),
		Appointments: appts,
		Suggestions:  PatientSuggestions(m, q.Typed, q.Patient),
		Total:        m.Count(),
		Filtered:     len(appts),
		Prev:         MonthRef{Year: py, Month: pm + 1},
		Next:         MonthRef{Year: ny, Month: nm + 1},
	}
}
