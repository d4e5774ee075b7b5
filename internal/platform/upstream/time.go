package upstream

import (
	"bytes"
	"fmt"
	"time"
)

var floatingLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// Time is a timestamp as emitted by the backing services. Columns stored
// without a zone come back as "2024-03-05T09:00:00"; those are kept as
// floating wall-clock values and only pinned to a location by In.
type Time struct {
	time.Time
	Floating bool
}

// In returns t in loc. A floating value is read as wall-clock time in loc.
func (t Time) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if t.Floating {
		y, mo, d := t.Date()
		h, mi, s := t.Clock()
		return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), loc)
	}
	return t.Time.In(loc)
}

// ParseTime accepts RFC 3339 and zone-less ISO-8601 timestamps.
func ParseTime(s string) (Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Time{Time: ts}, nil
	}
	for _, layout := range floatingLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Time{Time: ts, Floating: true}, nil
		}
	}
	return Time{}, fmt.Errorf("upstream: unrecognised timestamp %q", s)
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Time{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("upstream: timestamp must be a string, got %s", data)
	}
	parsed, err := ParseTime(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	if t.Floating {
		return []byte(`"` + t.Format("2006-01-02T15:04:05") + `"`), nil
	}
	return []byte(`"` + t.Format(time.RFC3339Nano) + `"`), nil
}
