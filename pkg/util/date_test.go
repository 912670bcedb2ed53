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
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestLookbackWindow(t *testing.T) {
    now := time.Date(2024, 10, 10, 15, 30, 0, 0, time.UTC)
    start, end := LookbackWindow(now, 30)
    if end != "2024-10-10" {
        t.Fatalf("unexpected end %q", end)
    }
    if start != "2024-09-10" {
        t.Fatalf("unexpected start %q", start)
    }
}

func TestLookbackWindowCrossesYear(t *testing.T) {
    now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
    start, _ := LookbackWindow(now, 10)
    if start != "2024-12-26" {
        t.Fatalf("unexpected start %q", start)
    }
}
