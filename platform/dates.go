/*
dates.go - Per-platform date normalization

PURPOSE:
  Each platform ships its own date format: DoorDash uses M/D/YY with no
  leading zeros, Uber Eats and Grubhub use ISO YYYY-MM-DD. Cross-platform
  date-range filters must normalize all of them to a common calendar day
  before comparing - comparing the raw strings would silently misorder
  DoorDash rows.

LENIENCY:
  DoorDash exports have been observed with both 2-digit and 4-digit years,
  with and without leading zeros. Parsing tries the known layouts in order
  rather than rejecting the file.
*/
package platform

import (
	"fmt"
	"time"
)

// doorDashLayouts in observed-frequency order. 2-digit years parse into
// 20xx via Go's reference-time rules.
var doorDashLayouts = []string{
	"1/2/06",
	"1/2/2006",
	"01/02/06",
	"01/02/2006",
}

// ParseDoorDashDate parses the M/D/YY convention used by DoorDash exports.
func ParseDoorDashDate(raw string) (time.Time, error) {
	for _, layout := range doorDashLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, raw)
}

// ParseISODate parses the YYYY-MM-DD convention used by Uber Eats and
// Grubhub exports. Timestamps with a trailing time component are truncated
// to the day.
func ParseISODate(raw string) (time.Time, error) {
	if len(raw) > 10 {
		raw = raw[:10]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, raw)
	}
	return t, nil
}

// NormalizeDate converts a platform-native date string to a calendar day.
func NormalizeDate(p Platform, raw string) (time.Time, error) {
	switch p {
	case DoorDash:
		return ParseDoorDashDate(raw)
	case UberEats, Grubhub:
		return ParseISODate(raw)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
}

// EffectiveDate returns the transaction's calendar day.
func (t DoorDashTransaction) EffectiveDate() (time.Time, error) {
	return ParseDoorDashDate(t.Date)
}

func (t UberEatsTransaction) EffectiveDate() (time.Time, error) {
	return ParseISODate(t.Date)
}

func (t GrubhubTransaction) EffectiveDate() (time.Time, error) {
	return ParseISODate(t.Date)
}
