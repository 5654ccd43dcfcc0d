package types

import (
	"bytes"
	"fmt"
	"time"
)

// DateLayout is the wire format of calendar dates (YYYY-MM-DD)
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// localDateTimeLayouts are accepted for timestamps without a zone, as emitted by the backends.
// Zoneless values are interpreted as UTC.
var localDateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Date is a calendar day with no time-of-day or zone, stored as midnight UTC
type Date struct {
	t time.Time
}

// NewDate creates a Date from its components
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar day in the time's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns the date as midnight UTC
func (d Date) Time() time.Time {
	return d.t
}

// After reports whether d is later than other
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// Before reports whether d is earlier than other
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// AddDays returns the date n days later (or earlier for negative n)
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole days from d to other. Both are midnight UTC, so the
// difference in Unix seconds is an exact multiple of a day and is not bounded by time.Duration.
func (d Date) DaysUntil(other Date) int64 {
	return (other.t.Unix() - d.t.Unix()) / secondsPerDay
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateTime is a timestamp that tolerates the zoneless ISO-8601 form used by the backends
type DateTime struct {
	time.Time
}

// ParseDateTime parses RFC3339 or a zoneless ISO-8601 local date-time
func ParseDateTime(s string) (DateTime, error) {
	for _, layout := range localDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime{Time: t}, nil
		}
	}
	return DateTime{}, fmt.Errorf("invalid date-time %q", s)
}

// MarshalJSON implements json.Marshaler
func (dt DateTime) MarshalJSON() ([]byte, error) {
	if dt.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + dt.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (dt *DateTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*dt = DateTime{}
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		*dt = DateTime{}
		return nil
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}
