package census

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config carries the fixed parameters of the counting engine. It is built once
// at process start and injected; components never mutate it.
type Config struct {
	// Denylist holds placeholder project names that are never counted.
	// Entries are lowercase; matching is case-insensitive.
	Denylist map[string]struct{}

	// WindowDefault/WindowMin/WindowMax bound the read-side aggregation
	// window in days.
	WindowDefault int
	WindowMin     int
	WindowMax     int

	// RetentionDays is the sweep horizon: counters whose day is strictly
	// older than today minus RetentionDays are deleted.
	RetentionDays int

	// SeenTTL is the lifetime of a dedup marker.
	SeenTTL time.Duration
	// CounterLifetime is how long after its day's UTC midnight a counter
	// naturally expires. It exceeds the retention horizon so expiration is
	// only the backstop behind the sweeper.
	CounterLifetime time.Duration
	// MarkerTTL is the lifetime of the sweep marker. Shorter than the sweep
	// cadence would cause duplicate sweeps; three days lets a missed day
	// self-heal without manual intervention.
	MarkerTTL time.Duration
}

// defaultDenylist contains placeholder and example project names that clients
// ship without configuring a real project.
var defaultDenylist = []string{
	"project",
	"projectname",
	"<project_name>",
	"my-project",
	"myproject",
	"example",
	"sample",
	"test",
	"demo",
	"unknown",
	"changeme",
}

// DefaultConfig returns the engine configuration used in production.
func DefaultConfig() *Config {
	denylist := make(map[string]struct{}, len(defaultDenylist))
	for _, name := range defaultDenylist {
		denylist[name] = struct{}{}
	}

	return &Config{
		Denylist:        denylist,
		WindowDefault:   7,
		WindowMin:       7,
		WindowMax:       365,
		RetentionDays:   365,
		SeenTTL:         10 * 24 * time.Hour,
		CounterLifetime: 366 * 24 * time.Hour,
		MarkerTTL:       3 * 24 * time.Hour,
	}
}

// Denylisted reports whether the project name is on the denylist.
// The comparison is case-insensitive; storage stays case-sensitive.
func (c *Config) Denylisted(project string) bool {
	_, ok := c.Denylist[strings.ToLower(project)]
	return ok
}

// --------------------------------------------------------------------------
// Window Resolution
// --------------------------------------------------------------------------

// windowShortcuts are the named windows accepted by the query surface.
var windowShortcuts = map[string]int{
	"week":    7,
	"month":   30,
	"quarter": 90,
	"half":    182,
	"year":    365,
}

// ResolveWindow parses a caller-supplied window parameter: empty means the
// default, a known name resolves to its day count, and anything else must be
// an integer within [WindowMin, WindowMax].
func (c *Config) ResolveWindow(raw string) (int, error) {
	if raw == "" {
		return c.WindowDefault, nil
	}
	if days, ok := windowShortcuts[strings.ToLower(raw)]; ok {
		return days, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	if days < c.WindowMin || days > c.WindowMax {
		return 0, fmt.Errorf("window %d out of range [%d, %d]", days, c.WindowMin, c.WindowMax)
	}
	return days, nil
}
