package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	isoDate     = "2006-01-02"
	displayDate = "02/01/2006"
	monthKey    = "2006-01"
)

var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	isoDate,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Date is a calendar date. Stores send either ISO strings or Unix seconds;
// text that cannot be parsed is kept in raw so it can still be displayed,
// and the date reports itself as not valid.
type Date struct {
	time.Time
	raw string
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateFromUnix converts a Unix timestamp in seconds.
func DateFromUnix(sec int64) Date {
	return Date{Time: time.Unix(sec, 0).UTC()}
}

// ParseDate parses an ISO date or date-time string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// ParseDateLenient parses s, keeping it verbatim when it is not a date.
func ParseDateLenient(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{raw: strings.TrimSpace(s)}
	}
	return d
}

func (d Date) Valid() bool {
	return !d.IsZero()
}

// Instant is the sortable point in time; the zero time for invalid dates.
func (d Date) Instant() time.Time {
	return d.Time
}

// String returns the ISO form, or the raw text for invalid dates.
func (d Date) String() string {
	if !d.Valid() {
		return d.raw
	}
	return d.Format(isoDate)
}

// Display returns the day/month/year form shown in transaction rows.
func (d Date) Display() string {
	if d.Valid() {
		return d.Format(displayDate)
	}
	if d.raw != "" {
		return d.raw
	}
	return "-"
}

// MonthKey returns the YYYY-MM token used by month filters, or "".
func (d Date) MonthKey() string {
	if !d.Valid() {
		return ""
	}
	return d.Format(monthKey)
}

// MonthIndex returns 0 for January through 11 for December, -1 if invalid.
func (d Date) MonthIndex() int {
	if !d.Valid() {
		return -1
	}
	return int(d.Month()) - 1
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a string or a number of Unix seconds. It never fails
// on content: an unknown shape becomes an invalid date.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = ParseDateLenient(s)
		return nil
	}
	if f, err := strconv.ParseFloat(string(data), 64); err == nil {
		*d = DateFromUnix(int64(f))
		return nil
	}
	*d = Date{raw: string(data)}
	return nil
}
