package database

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// sqliteTimeLayouts are the text forms SQLite drivers write for timestamps
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// nullTime scans timestamps returned either as time.Time or as text
type nullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner
func (nt *nullTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*nt = nullTime{}
		return nil
	case time.Time:
		*nt = nullTime{Time: v, Valid: true}
		return nil
	case string:
		return nt.parse(v)
	case []byte:
		return nt.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", value)
	}
}

func (nt *nullTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*nt = nullTime{}
		return nil
	}
	// time.Time.String() output carries a monotonic clock suffix
	if i := strings.Index(s, " m="); i > 0 {
		s = s[:i]
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*nt = nullTime{Time: t, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

// Value implements driver.Valuer
func (nt nullTime) Value() (driver.Value, error) {
	if !nt.Valid {
		return nil, nil
	}
	return nt.Time, nil
}

func (nt nullTime) ptr() *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
