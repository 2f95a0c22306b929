// Package dates holds the calendar-date type shared by plans, settlement and
// leaderboards. A Date has no time-of-day and no zone; the zone a date
// "belongs to" is always supplied explicitly when converting from an instant.
package dates

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Layout is the wire and storage format of a calendar date.
const Layout = "2006-01-02"

// DefaultTimezone is used when a user has no timezone configured.
const DefaultTimezone = "Asia/Shanghai"

// ReferenceZone is the fixed UTC+8 zone used for system-wide date defaults
// such as the leaderboard snapshot date. It is independent of any user.
var ReferenceZone = time.FixedZone("UTC+8", 8*60*60)

var layoutPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date is a calendar date.
type Date struct {
	t time.Time
}

// New returns the date y-m-d.
func New(y int, m time.Month, d int) Date {
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Of returns the calendar date of t as seen in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return New(y, m, d)
}

// InZone returns the calendar date of instant t in loc.
func InZone(t time.Time, loc *time.Location) Date {
	return Of(t.In(loc))
}

// Parse validates a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	if !layoutPattern.MatchString(s) {
		return Date{}, fmt.Errorf("date %q must be formatted as YYYY-MM-DD", s)
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("date %q is not a valid calendar date", s)
	}
	return Date{t: t}, nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format(Layout)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return d.t
}

// At returns the instant hour:min on this date in loc.
func (d Date) At(hour, min int, loc *time.Location) time.Time {
	y, m, day := d.t.Date()
	return time.Date(y, m, day, hour, min, 0, 0, loc)
}

func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Before(o Date) bool    { return d.t.Before(o.t) }
func (d Date) After(o Date) bool     { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool     { return d.t.Equal(o.t) }
func (d Date) AddDays(n int) Date    { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.t.Before(o.t):
		return -1
	case d.t.After(o.t):
		return 1
	default:
		return 0
	}
}

// DaysUntil returns the number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

// Between reports whether d lies within [from, to], inclusive.
func (d Date) Between(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = Of(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into dates.Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LoadLocation resolves an IANA zone name. An empty or unknown name falls
// back to DefaultTimezone, and to ReferenceZone when the tz database is not
// available at all.
func LoadLocation(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return ReferenceZone
}
