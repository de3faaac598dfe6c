package census

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/namelessnanashi/census/lib/kv"
)

// --------------------------------------------------------------------------
// Stats Types
// --------------------------------------------------------------------------

// Stats is the windowed aggregate consumed by the presentation layer.
// Days always holds the full window, oldest first; Projects and Totals only
// hold entries for days that actually have data. The store gives no ordering
// guarantee across projects, so Projects is keyed, not sequenced; callers sort
// project names for display.
type Stats struct {
	Days     []Day                  `json:"days"`
	Projects map[string]map[Day]int `json:"projects"`
	Totals   map[Day]int            `json:"totals"`
}

// --------------------------------------------------------------------------
// Aggregator
// --------------------------------------------------------------------------

// Aggregator answers read requests by enumerating counter keys and fetching
// their values. Listing and per-key fetches are separate eventually-consistent
// operations, so a counter can be briefly absent from a freshly-listed key or
// reflect a stale value; that read skew is accepted, not corrected.
type Aggregator struct {
	store  kv.IStore
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator reading from the given store.
func NewAggregator(store kv.IStore, config *Config) *Aggregator {
	return &Aggregator{
		store:  store,
		config: config,
		logger: slog.With("component", "aggregator"),
		now:    time.Now,
	}
}

// BuildStats aggregates counters over the trailing windowDays UTC days ending
// today, optionally restricted to a single project. The boundary validates the
// window range before calling; this method trusts it.
func (a *Aggregator) BuildStats(projectFilter string, windowDays int) (*Stats, error) {
	today := DayOf(a.now())
	days := WindowEnding(today, windowDays)

	inWindow := make(map[Day]struct{}, len(days))
	for _, day := range days {
		inWindow[day] = struct{}{}
	}

	stats := &Stats{
		Days:     days,
		Projects: make(map[string]map[Day]int),
		Totals:   make(map[Day]int),
	}

	err := forEachKey(a.store, CountPrefix, func(key string) {
		ck, err := ParseCountKey(key)
		if err != nil {
			a.logger.Debug("skipping unparseable counter key", "key", key)
			return
		}
		if a.config.Denylisted(ck.Project) {
			return
		}
		if _, ok := inWindow[ck.Day]; !ok {
			return
		}
		if projectFilter != "" && ck.Project != projectFilter {
			return
		}

		count := a.fetchCount(key)
		if count == 0 {
			return
		}

		perDay := stats.Projects[ck.Project]
		if perDay == nil {
			perDay = make(map[Day]int)
			stats.Projects[ck.Project] = perDay
		}
		perDay[ck.Day] += count
		stats.Totals[ck.Day] += count
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// fetchCount reads and parses one counter value. A missing, unreadable or
// non-numeric value counts as zero; only listing failures abort a pass.
func (a *Aggregator) fetchCount(key string) int {
	value, loaded, err := a.store.Get(key)
	if err != nil {
		a.logger.Debug("counter fetch failed, counting as zero", "key", key, "err", err)
		return 0
	}
	if !loaded {
		// listed but already gone: read skew between List and Get
		return 0
	}

	count, err := strconv.Atoi(string(value))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// --------------------------------------------------------------------------
// Shared Pagination
// --------------------------------------------------------------------------

// forEachPage walks every page of keys under the prefix, looping until the
// store reports no further cursor. The aggregator and the sweeper both consume
// full listings; this is the single place that implements the loop. The
// sweeper needs page boundaries (it deletes concurrently within a page), so
// the callback receives whole pages.
func forEachPage(store kv.IStore, prefix string, fn func(keys []kv.KeyInfo)) error {
	cursor := ""
	for {
		page, err := store.List(prefix, cursor)
		if err != nil {
			return err
		}
		fn(page.Keys)
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}

// forEachKey flattens forEachPage for callers that don't care about paging.
func forEachKey(store kv.IStore, prefix string, fn func(key string)) error {
	return forEachPage(store, prefix, func(keys []kv.KeyInfo) {
		for _, key := range keys {
			fn(key.Name)
		}
	})
}
