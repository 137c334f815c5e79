package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("yesterday", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestNextMinute(t *testing.T) {
	at := time.Date(2025, 3, 3, 10, 0, 30, 0, time.UTC)
	if got := NextMinute(at); !got.Equal(time.Date(2025, 3, 3, 10, 1, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
	onBoundary := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	if got := NextMinute(onBoundary); !got.Equal(onBoundary.Add(time.Minute)) {
		t.Fatalf("boundary: got %v", got)
	}
}

func TestAlignToTimeframe(t *testing.T) {
	at := time.Date(2025, 3, 3, 10, 7, 59, 0, time.UTC)
	if got := AlignToTimeframe(at, 5); !got.Equal(time.Date(2025, 3, 3, 10, 5, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
	if got := AlignToTimeframe(at, 0); !got.Equal(time.Date(2025, 3, 3, 10, 7, 0, 0, time.UTC)) {
		t.Fatalf("zero timeframe: got %v", got)
	}
}
