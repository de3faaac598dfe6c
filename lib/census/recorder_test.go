package census

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/namelessnanashi/census/lib/kv"
	"github.com/namelessnanashi/census/lib/kv/memstore"
)

const validID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// newRecorder returns a recorder over a fresh in-memory store.
func newRecorder(t *testing.T) (*Recorder, kv.IStore) {
	t.Helper()

	store := memstore.New(nil)
	t.Cleanup(func() { _ = store.Close() })
	return NewRecorder(store, DefaultConfig()), store
}

func counterValue(t *testing.T, store kv.IStore, day Day, project string) string {
	t.Helper()

	value, loaded, err := store.Get(CountKey{Day: day, Project: project}.Encode())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !loaded {
		return ""
	}
	return string(value)
}

func TestRecordFirstAndDuplicate(t *testing.T) {
	recorder, store := newRecorder(t)
	today := DayOf(time.Now())

	if outcome := recorder.Record(Report{ID: validID, Project: "Foo"}); outcome != OutcomeRecorded {
		t.Fatalf("Expected first report to be recorded, got %s", outcome)
	}
	if got := counterValue(t, store, today, "Foo"); got != "1" {
		t.Errorf("Expected counter value 1 after first report, got %q", got)
	}

	// identical triple on the same day leaves the counter unchanged
	if outcome := recorder.Record(Report{ID: validID, Project: "Foo"}); outcome != OutcomeDuplicate {
		t.Errorf("Expected second identical report to be a duplicate, got %v", outcome)
	}
	if got := counterValue(t, store, today, "Foo"); got != "1" {
		t.Errorf("Expected counter to stay at 1 after duplicate, got %q", got)
	}

	// different id, same project and day, increments
	otherID := strings.Repeat("b", 64)
	if outcome := recorder.Record(Report{ID: otherID, Project: "Foo"}); outcome != OutcomeRecorded {
		t.Errorf("Expected report with new id to be recorded, got %s", outcome)
	}
	if got := counterValue(t, store, today, "Foo"); got != "2" {
		t.Errorf("Expected counter value 2 after distinct ids, got %q", got)
	}
}

func TestRecordInvalidID(t *testing.T) {
	recorder, store := newRecorder(t)
	today := DayOf(time.Now())

	invalid := []string{
		"",
		"short",
		strings.Repeat("A", 64),      // uppercase hex
		strings.Repeat("g", 64),      // non-hex
		strings.Repeat("a", 63),      // too short
		strings.Repeat("a", 65),      // too long
		strings.Repeat("a", 63) + "!",
	}
	for _, id := range invalid {
		if outcome := recorder.Record(Report{ID: id, Project: "Foo"}); outcome != OutcomeInvalidID {
			t.Errorf("Expected invalid-id outcome for %q, got %s", id, outcome)
		}
	}

	if got := counterValue(t, store, today, "Foo"); got != "" {
		t.Errorf("Expected no counter after invalid ids, got %q", got)
	}
}

func TestRecordDenylistedProject(t *testing.T) {
	recorder, store := newRecorder(t)
	today := DayOf(time.Now())

	for _, project := range []string{"Project", "PROJECT", "test", "Example", "  demo  "} {
		if outcome := recorder.Record(Report{ID: validID, Project: project}); outcome != OutcomeInvalidProject {
			t.Errorf("Expected denylisted outcome for %q, got %s", project, outcome)
		}
	}

	if got := counterValue(t, store, today, "Project"); got != "" {
		t.Errorf("Expected no counter for denylisted project, got %q", got)
	}
	if got := counterValue(t, store, today, "test"); got != "" {
		t.Errorf("Expected no counter for denylisted project, got %q", got)
	}
}

func TestRecordProjectResolutionOrder(t *testing.T) {
	recorder, store := newRecorder(t)
	today := DayOf(time.Now())

	report := Report{
		ID:          validID,
		Override:    "FromHeader",
		ProjectName: "FromProjectName",
		Project:     "FromProject",
	}
	if outcome := recorder.Record(report); outcome != OutcomeRecorded {
		t.Fatalf("Expected report to be recorded, got %s", outcome)
	}
	if got := counterValue(t, store, today, "FromHeader"); got != "1" {
		t.Errorf("Expected header override to win, counter FromHeader=%q", got)
	}

	report.Override = ""
	report.ID = strings.Repeat("c", 64)
	if outcome := recorder.Record(report); outcome != OutcomeRecorded {
		t.Fatalf("Expected report to be recorded, got %s", outcome)
	}
	if got := counterValue(t, store, today, "FromProjectName"); got != "1" {
		t.Errorf("Expected projectname to win over project, counter FromProjectName=%q", got)
	}
}

func TestRecordEmptyProject(t *testing.T) {
	recorder, _ := newRecorder(t)

	for _, project := range []string{"", "   ", "\r\n\t"} {
		if outcome := recorder.Record(Report{ID: validID, Project: project}); outcome != OutcomeInvalidProject {
			t.Errorf("Expected invalid-project outcome for %q, got %s", project, outcome)
		}
	}
}

func TestNormalizeProject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Foo", "Foo"},
		{"  Foo  ", "Foo"},
		{"Fo\ro\n", "Foo"},
		{"a\tb", "ab"},
		{"a\x00b", "ab"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
		{"with:colons", "with:colons"},
	}
	for _, tt := range tests {
		if got := NormalizeProject(tt.in); got != tt.want {
			t.Errorf("NormalizeProject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestRecordConcurrentSameReport races many identical reports through the
// Get-then-Put protocol. Without transactions the counter may land anywhere
// between 1 and N (concurrent recorders can read the seen marker before any
// write lands), but it must stay bounded and the dedup marker must settle.
func TestRecordConcurrentSameReport(t *testing.T) {
	recorder, store := newRecorder(t)
	today := DayOf(time.Now())

	const n = 32
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = recorder.Record(Report{ID: validID, Project: "Foo"})
		}(i)
	}
	wg.Wait()

	for i, outcome := range outcomes {
		if outcome != OutcomeRecorded && outcome != OutcomeDuplicate {
			t.Errorf("Expected recorded or duplicate from racer %d, got %s", i, outcome)
		}
	}

	raw := counterValue(t, store, today, "Foo")
	count, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("Counter is not numeric after concurrent reports: %q", raw)
	}
	if count < 1 || count > n {
		t.Errorf("Expected counter in [1, %d] after %d racing reports, got %d", n, n, count)
	}

	seenKey := SeenKey{Day: today, Project: "Foo", ID: validID}.Encode()
	if _, loaded, err := store.Get(seenKey); err != nil || !loaded {
		t.Errorf("Expected dedup marker to exist after the race (loaded=%t, err=%v)", loaded, err)
	}

	// once the dust settles, the same report is a plain duplicate
	if outcome := recorder.Record(Report{ID: validID, Project: "Foo"}); outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate after concurrent reports, got %s", outcome)
	}
	if got := counterValue(t, store, today, "Foo"); got != raw {
		t.Errorf("Expected counter unchanged by duplicate, got %q (was %q)", got, raw)
	}
}

// --------------------------------------------------------------------------
// Store failure behavior
// --------------------------------------------------------------------------

// faultyStore wraps an inner store and fails selected operations.
type faultyStore struct {
	kv.IStore
	failGet bool
	failPut bool
}

func (f *faultyStore) Get(key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, kv.NewError(kv.RetCUnavailable, "injected get failure")
	}
	return f.IStore.Get(key)
}

func (f *faultyStore) Put(key string, value []byte, opts kv.PutOptions) error {
	if f.failPut {
		return kv.NewError(kv.RetCUnavailable, "injected put failure")
	}
	return f.IStore.Put(key, value, opts)
}

func TestRecordStoreUnavailable(t *testing.T) {
	inner := memstore.New(nil)
	defer inner.Close()
	faulty := &faultyStore{IStore: inner}
	recorder := NewRecorder(faulty, DefaultConfig())

	faulty.failGet = true
	if outcome := recorder.Record(Report{ID: validID, Project: "Foo"}); outcome != OutcomeStoreUnavailable {
		t.Errorf("Expected store-unavailable when dedup read fails, got %s", outcome)
	}

	faulty.failGet = false
	faulty.failPut = true
	if outcome := recorder.Record(Report{ID: validID, Project: "Foo"}); outcome != OutcomeStoreUnavailable {
		t.Errorf("Expected store-unavailable when marker write fails, got %s", outcome)
	}

	// the report was dropped, not retried: no counter exists
	faulty.failPut = false
	today := DayOf(time.Now())
	if got := counterValue(t, inner, today, "Foo"); got != "" {
		t.Errorf("Expected no counter after failed attempts, got %q", got)
	}
}

func TestRecordCounterExpirationIsAbsolute(t *testing.T) {
	inner := memstore.New(nil)
	defer inner.Close()

	var captured kv.PutOptions
	capture := &capturingStore{IStore: inner}
	recorder := NewRecorder(capture, DefaultConfig())

	if outcome := recorder.Record(Report{ID: validID, Project: "Foo"}); outcome != OutcomeRecorded {
		t.Fatalf("Expected report to be recorded, got %s", outcome)
	}
	captured = capture.lastCounterOpts

	dayStart, err := DayOf(time.Now()).Time()
	if err != nil {
		t.Fatalf("day parse failed: %v", err)
	}
	want := dayStart.Add(366 * 24 * time.Hour).Unix()
	if captured.ExpireAt != want {
		t.Errorf("Expected counter expiration %d (day start + 366d), got %d", want, captured.ExpireAt)
	}
	if captured.TTLSeconds != 0 {
		t.Errorf("Expected counter to use absolute expiration only, got TTL %d", captured.TTLSeconds)
	}
}

// capturingStore records the PutOptions of the last counter write.
type capturingStore struct {
	kv.IStore
	lastCounterOpts kv.PutOptions
}

func (c *capturingStore) Put(key string, value []byte, opts kv.PutOptions) error {
	if strings.HasPrefix(key, CountPrefix) {
		c.lastCounterOpts = opts
	}
	return c.IStore.Put(key, value, opts)
}
