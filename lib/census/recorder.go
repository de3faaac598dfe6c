package census

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/namelessnanashi/census/lib/kv"
)

// --------------------------------------------------------------------------
// Report & Outcome Types
// --------------------------------------------------------------------------

// Report is one client-submitted census event, before validation. The three
// project fields mirror the accepted input channels; Override wins over
// ProjectName, which wins over Project. Any client-supplied date is ignored.
type Report struct {
	ID          string
	Override    string // header override
	ProjectName string // body field "projectname"
	Project     string // body field "project"
}

// Outcome classifies what happened to a report. All outcomes collapse to the
// same success signal at the HTTP boundary; the distinction exists for logging
// and metrics only.
type Outcome int

const (
	OutcomeRecorded Outcome = iota
	OutcomeDuplicate
	OutcomeInvalidID
	OutcomeInvalidProject
	OutcomeStoreUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDuplicate:
		return "duplicate-ignored"
	case OutcomeInvalidID:
		return "invalid-id"
	case OutcomeInvalidProject:
		return "invalid-or-denylisted-project"
	case OutcomeStoreUnavailable:
		return "store-unavailable"
	default:
		return "unknown"
	}
}

// idPattern accepts exactly a lowercase hex SHA-256 digest.
var idPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// --------------------------------------------------------------------------
// Recorder
// --------------------------------------------------------------------------

// Recorder runs the dedup+increment protocol for incoming reports. It owns all
// writes to counters; every other component reads them at most.
type Recorder struct {
	store  kv.IStore
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder writing through the given store.
func NewRecorder(store kv.IStore, config *Config) *Recorder {
	return &Recorder{
		store:  store,
		config: config,
		logger: slog.With("component", "recorder"),
		now:    time.Now,
	}
}

// Record validates and counts one report. It never returns an error: a failed
// store call degrades the operation from "recorded" to a silent no-op, because
// losing a count is preferable to failing the client.
//
// The protocol is not transactional. Two concurrent reports with the same
// (day, project, id) can both observe "not seen" before either writes, which
// produces at most one duplicate increment per true concurrent collision; the
// marker still caps all future counting of that id for the day.
func (r *Recorder) Record(report Report) Outcome {
	if !idPattern.MatchString(report.ID) {
		return OutcomeInvalidID
	}

	project := NormalizeProject(resolveProject(report))
	if project == "" {
		return OutcomeInvalidProject
	}
	if r.config.Denylisted(project) {
		return OutcomeInvalidProject
	}

	// The day is always the server's current UTC day. Trusting a
	// client-supplied date would allow backdating historical counters and
	// detach the dedup window from the marker TTL.
	now := r.now().UTC()
	day := DayOf(now)

	seenKey := SeenKey{Day: day, Project: project, ID: report.ID}.Encode()
	countKey := CountKey{Day: day, Project: project}.Encode()

	// Absolute expiration for the counter: UTC midnight of its day plus the
	// configured lifetime.
	dayStart, err := day.Time()
	if err != nil {
		// cannot happen for DayOf output
		return OutcomeStoreUnavailable
	}
	counterExpireAt := dayStart.Add(r.config.CounterLifetime).Unix()

	// Step 1: dedup check.
	_, seen, err := r.store.Get(seenKey)
	if err != nil {
		r.logger.Warn("dedup lookup failed, dropping report", "err", err)
		return OutcomeStoreUnavailable
	}
	if seen {
		return OutcomeDuplicate
	}

	// Step 2: write the marker before touching the counter, so a failure
	// between the two steps under-counts rather than double-counts.
	err = r.store.Put(seenKey, []byte("1"), kv.PutOptions{
		TTLSeconds: uint64(r.config.SeenTTL / time.Second),
	})
	if err != nil {
		r.logger.Warn("dedup marker write failed, dropping report", "err", err)
		return OutcomeStoreUnavailable
	}

	// Step 3: read-modify-write the counter. Missing or unparseable values
	// count as zero.
	previous := 0
	if value, loaded, err := r.store.Get(countKey); err != nil {
		r.logger.Warn("counter read failed, dropping report", "err", err)
		return OutcomeStoreUnavailable
	} else if loaded {
		if n, err := strconv.Atoi(string(value)); err == nil && n > 0 {
			previous = n
		}
	}

	err = r.store.Put(countKey, []byte(strconv.Itoa(previous+1)), kv.PutOptions{
		ExpireAt: counterExpireAt,
	})
	if err != nil {
		r.logger.Warn("counter write failed, count lost", "err", err)
		return OutcomeStoreUnavailable
	}

	return OutcomeRecorded
}

// --------------------------------------------------------------------------
// Input Normalization
// --------------------------------------------------------------------------

// resolveProject picks the project name from the accepted input channels.
func resolveProject(report Report) string {
	if report.Override != "" {
		return report.Override
	}
	if report.ProjectName != "" {
		return report.ProjectName
	}
	return report.Project
}

// NormalizeProject strips control characters, trims surrounding whitespace and
// caps the name at 100 characters. Matching against the denylist is
// case-insensitive, but the normalized casing is what gets stored.
func NormalizeProject(project string) string {
	project = strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', 0:
			return -1
		}
		return r
	}, project)

	project = strings.TrimSpace(project)

	if runes := []rune(project); len(runes) > 100 {
		project = string(runes[:100])
	}
	return project
}
