package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCollectorDeduplicatesWarnings(t *testing.T) {
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10})
	defer l.RemoveCollector()

	for i := 0; i < 3; i++ {
		l.Warn("synthetic fallback", String("symbol", "EURUSD"))
	}
	l.Error("fetch failed", Error(errors.New("boom")))
	l.Info("not collected")

	got := l.Collector().Snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 aggregated entries, got %d", len(got))
	}
	counts := map[string]int{}
	for _, e := range got {
		counts[e.Message] = e.Count
	}
	if counts["synthetic fallback"] != 3 || counts["fetch failed"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestCollectorKeepsFlushedEntries(t *testing.T) {
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Keep: 3})
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.AddLog("warn", "m", map[string]interface{}{"i": i}, "x.go:1")
	}
	if got := len(c.Snapshot()); got != 4 {
		t.Fatalf("expected 3 kept + 1 pending, got %d", got)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScanFieldsInJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "scanner-test")

	l.With(Symbol("EURUSD")).Info("signal emitted",
		Timeframe(15), Direction("CALL"), Confidence(72.5), Duration("took", 1500*time.Millisecond))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]interface{}{
		"service":    "scanner-test",
		"symbol":     "EURUSD",
		"timeframe":  float64(15),
		"direction":  "CALL",
		"confidence": 72.5,
		"took":       float64(1500),
		"message":    "signal emitted",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if c, _ := entry["caller"].(string); !strings.Contains(c, "logger_test.go") {
		t.Errorf("caller = %q, want the calling test file", c)
	}
}

func TestCollectedEntryKeepsFieldValues(t *testing.T) {
	l := newLogger(&bytes.Buffer{}, "signalscan")
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10})
	defer l.RemoveCollector()

	l.Error("fetch failed", Symbol("GBPUSD"), Timeframe(5), Error(errors.New("timeout")))

	got := l.Collector().Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	e := got[0]
	if e.Fields["symbol"] != "GBPUSD" || e.Fields["timeframe"] != int64(5) || e.Fields["error"] != "timeout" {
		t.Fatalf("fields = %v", e.Fields)
	}
	if !strings.HasSuffix(strings.Split(e.Caller, ":")[0], "logger_test.go") {
		t.Fatalf("caller = %q", e.Caller)
	}
}
