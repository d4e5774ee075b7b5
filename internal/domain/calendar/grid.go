package calendar

import "time"

// NoDay marks a grid cell outside the month.
const NoDay = 0

// Weekdays is the grid's column header, Monday first.
var Weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// MonthGrid is the cell layout of one month under a Monday-first week.
type MonthGrid struct {
	Year        int   `json:"year"`
	MonthIndex  int   `json:"month_index"`
	Offset      int   `json:"offset"`
	DaysInMonth int   `json:"days_in_month"`
	Cells       []int `json:"cells"`
}

// BuildMonthGrid lays out monthIndex (0 = January) of year. Cells hold the day
// number or NoDay, and their count is a multiple of 7.
func BuildMonthGrid(year, monthIndex int) MonthGrid {
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	days := first.AddDate(0, 1, -1).Day()

	total := offset + days
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}
	cells := make([]int, total)
	for d := 1; d <= days; d++ {
		cells[offset+d-1] = d
	}
	return MonthGrid{
		Year:        first.Year(),
		MonthIndex:  int(first.Month()) - 1,
		Offset:      offset,
		DaysInMonth: days,
		Cells:       cells,
	}
}

// Weeks splits the cells into rows of 7.
func (g MonthGrid) Weeks() [][]int {
	rows := make([][]int, 0, len(g.Cells)/7)
	for i := 0; i+7 <= len(g.Cells); i += 7 {
		rows = append(rows, g.Cells[i:i+7:i+7])
	}
	return rows
}

// Key returns the DateKey of day in this month.
func (g MonthGrid) Key(day int) string {
	return DateKey(g.Year, g.MonthIndex, day)
}

// MonthRange returns the inclusive bounds of the month in loc: the first day
// at 00:00:00 and the last day at 23:59:59.
func MonthRange(year, monthIndex int, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.Local
	}
	from = time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, loc)
	last := time.Date(year, time.Month(monthIndex+2), 0, 0, 0, 0, 0, loc)
	to = time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 0, loc)
	return from, to
}

// MonthStep moves delta months from (year, monthIndex), rolling over year
// boundaries.
func MonthStep(year, monthIndex, delta int) (int, int) {
	total := year*12 + monthIndex + delta
	y, m := total/12, total%12
	if m < 0 {
		m += 12
		y--
	}
	return y, m
}
