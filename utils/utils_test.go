package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseTimeWithFallback(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-08-12T21:00:00Z", time.Date(2026, 8, 12, 21, 0, 0, 0, time.UTC)},
		{"2026-08-12 21:00", time.Date(2026, 8, 12, 21, 0, 0, 0, loc)},
		{"2026-08-12", time.Date(2026, 8, 12, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		got, err := ParseTimeWithFallback(tt.in, loc)
		if err != nil {
			t.Fatalf("ParseTimeWithFallback(%q) failed: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimeWithFallback(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimeWithFallback("next tuesday", loc); err == nil {
		t.Error("expected an error for an unparseable time")
	}
}

func TestRenderBox(t *testing.T) {
	box := RenderBox("Orion", []string{"Lake", "3/5 members"})

	lines := strings.Split(strings.TrimSuffix(box, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), box)
	}
	if !strings.Contains(lines[0], "Orion") {
		t.Errorf("title missing from top border: %q", lines[0])
	}
}

func TestRenderTableTo(t *testing.T) {
	var buf bytes.Buffer
	RenderTableTo(&buf, []string{"ID", "Title"}, [][]string{{"1", "Orion"}})

	if !strings.Contains(buf.String(), "Orion") {
		t.Errorf("table output missing row:\n%s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("clear skies tonight", 6); got != "clear…" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}
