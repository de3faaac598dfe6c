package census

import (
	"errors"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Day Type
// --------------------------------------------------------------------------

// Day is a UTC calendar date in the form "YYYY-MM-DD". All counting and keying
// uses UTC days; any remapping to local calendars is a presentation concern.
type Day string

const dayLayout = "2006-01-02"

// DayOf returns the UTC calendar day of the given instant.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(dayLayout))
}

// Time returns the UTC midnight at which the day starts.
func (d Day) Time() (time.Time, error) {
	return time.Parse(dayLayout, string(d))
}

// AddDays returns the day n calendar days after d (n may be negative).
// An unparseable day is returned unchanged.
func (d Day) AddDays(n int) Day {
	t, err := d.Time()
	if err != nil {
		return d
	}
	return DayOf(t.AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
// The YYYY-MM-DD layout makes lexical order equal calendar order.
func (d Day) Before(other Day) bool {
	return string(d) < string(other)
}

// WindowEnding returns the trailing n consecutive days ending with last
// (inclusive), oldest first.
func WindowEnding(last Day, n int) []Day {
	days := make([]Day, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, last.AddDays(-i))
	}
	return days
}

// --------------------------------------------------------------------------
// Key Space
// --------------------------------------------------------------------------

// The persisted key layout is shared state: any process using the same store
// must produce byte-identical keys.
//
//	seen:<YYYY-MM-DD>:<project>:<64-hex-id>  -> "1"
//	counts:<YYYY-MM-DD>:<project>            -> "<integer>"
//	maintenance:lastCleanupAt                -> "<YYYY-MM-DD>"
const (
	SeenPrefix  = "seen:"
	CountPrefix = "counts:"
	MarkerKey   = "maintenance:lastCleanupAt"
)

// ErrUnparseableKey is returned when a listed key does not decode. Callers
// skip such keys; they are never fatal to an aggregation or sweep pass.
var ErrUnparseableKey = errors.New("unparseable key")

// SeenKey identifies the dedup marker for one (day, project, id) triple.
type SeenKey struct {
	Day     Day
	Project string
	ID      string
}

// Encode renders the marker's store key.
func (k SeenKey) Encode() string {
	return SeenPrefix + string(k.Day) + ":" + k.Project + ":" + k.ID
}

// CountKey identifies the per-(day, project) counter.
type CountKey struct {
	Day     Day
	Project string
}

// Encode renders the counter's store key.
func (k CountKey) Encode() string {
	return CountPrefix + string(k.Day) + ":" + k.Project
}

// ParseCountKey decodes a listed counter key. The key is split on ":" into at
// most 3 parts: the day is the second part and the project is the remainder,
// colons included. Project names may themselves contain colons, so this is the
// only decoding that is reversible for every project string.
func ParseCountKey(key string) (CountKey, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return CountKey{}, ErrUnparseableKey
	}
	return CountKey{Day: Day(parts[1]), Project: parts[2]}, nil
}
