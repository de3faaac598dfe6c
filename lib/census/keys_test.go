package census

import (
	"testing"
	"time"
)

func TestDayOf(t *testing.T) {
	// 23:30 in UTC-5 is already the next UTC day
	loc := time.FixedZone("UTC-5", -5*3600)
	instant := time.Date(2024, 1, 1, 23, 30, 0, 0, loc)

	if day := DayOf(instant); day != "2024-01-02" {
		t.Errorf("Expected UTC day 2024-01-02, got %s", day)
	}

	if day := DayOf(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); day != "2024-01-01" {
		t.Errorf("Expected UTC day 2024-01-01, got %s", day)
	}
}

func TestWindowEnding(t *testing.T) {
	days := WindowEnding("2024-03-03", 7)

	expected := []Day{
		"2024-02-26", "2024-02-27", "2024-02-28", "2024-02-29", // leap year
		"2024-03-01", "2024-03-02", "2024-03-03",
	}
	if len(days) != len(expected) {
		t.Fatalf("Expected %d days, got %d", len(expected), len(days))
	}
	for i, day := range expected {
		if days[i] != day {
			t.Errorf("Expected day %d to be %s, got %s", i, day, days[i])
		}
	}
}

func TestSeenKeyEncode(t *testing.T) {
	key := SeenKey{Day: "2024-01-01", Project: "Foo", ID: "abc123"}

	if encoded := key.Encode(); encoded != "seen:2024-01-01:Foo:abc123" {
		t.Errorf("Unexpected seen key encoding: %s", encoded)
	}
}

func TestCountKeyRoundTrip(t *testing.T) {
	// projects may contain colons; decode must recover them exactly
	projects := []string{
		"Foo",
		"my:project:with:colons",
		"trailing:",
		":leading",
		"with spaces and ümlauts",
	}

	for _, project := range projects {
		original := CountKey{Day: "2024-01-05", Project: project}
		decoded, err := ParseCountKey(original.Encode())
		if err != nil {
			t.Errorf("ParseCountKey(%q) failed: %v", original.Encode(), err)
			continue
		}
		if decoded != original {
			t.Errorf("Round trip mismatch: encoded %q, decoded %+v", original.Encode(), decoded)
		}
	}
}

func TestParseCountKeyUnparseable(t *testing.T) {
	for _, key := range []string{"counts", "counts:2024-01-01", "", "noseparators"} {
		if _, err := ParseCountKey(key); err != ErrUnparseableKey {
			t.Errorf("Expected ErrUnparseableKey for %q, got %v", key, err)
		}
	}
}

func TestMarkerKeyLayout(t *testing.T) {
	// persisted layout is shared state, pin it
	if MarkerKey != "maintenance:lastCleanupAt" {
		t.Errorf("Marker key layout changed: %s", MarkerKey)
	}
	if SeenPrefix != "seen:" || CountPrefix != "counts:" {
		t.Errorf("Key prefixes changed: %s %s", SeenPrefix, CountPrefix)
	}
}
