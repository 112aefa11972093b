package clock

import (
	"testing"
	"time"
)

var kickoff = time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)

func TestElapsedNowStopped(t *testing.T) {
	since := kickoff
	tests := []struct {
		name         string
		checkpoint   int
		runningSince *time.Time
		live         bool
	}{
		{"not live with timestamp", 300, &since, false},
		{"live but paused", 300, nil, true},
		{"scheduled", 0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ElapsedNow(tt.checkpoint, tt.runningSince, tt.live, kickoff.Add(time.Hour))
			if got != tt.checkpoint {
				t.Errorf("Expected %d, got %d", tt.checkpoint, got)
			}
		})
	}
}

func TestElapsedNowRunning(t *testing.T) {
	since := kickoff
	got := ElapsedNow(600, &since, true, kickoff.Add(30*time.Second+900*time.Millisecond))
	if got != 630 {
		t.Errorf("Expected 630, got %d", got)
	}
}

func TestElapsedNowClockSkew(t *testing.T) {
	since := kickoff.Add(10 * time.Second)
	got := ElapsedNow(42, &since, true, kickoff)
	if got != 42 {
		t.Errorf("Expected skewed read to clamp to 42, got %d", got)
	}
}

func TestElapsedNowIdempotentAndMonotonic(t *testing.T) {
	since := kickoff
	now := kickoff.Add(77 * time.Second)

	first := ElapsedNow(10, &since, true, now)
	second := ElapsedNow(10, &since, true, now)
	if first != second {
		t.Fatalf("Expected identical reads, got %d and %d", first, second)
	}

	prev := -1
	for i := 0; i < 500; i++ {
		got := ElapsedNow(10, &since, true, kickoff.Add(time.Duration(i)*250*time.Millisecond))
		if got < prev {
			t.Fatalf("Expected non-decreasing sequence, got %d after %d", got, prev)
		}
		prev = got
	}
}

func TestElapsedNowNegativeCheckpoint(t *testing.T) {
	if got := ElapsedNow(-5, nil, false, kickoff); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds int
		full    string
		minutes string
	}{
		{0, "0:00", "0'"},
		{59, "0:59", "0'"},
		{125, "2:05", "2'"},
		{2700, "45:00", "45'"},
		{6059, "100:59", "100'"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.full {
			t.Errorf("Format(%d): expected %q, got %q", tt.seconds, tt.full, got)
		}
		if got := FormatMinutes(tt.seconds); got != tt.minutes {
			t.Errorf("FormatMinutes(%d): expected %q, got %q", tt.seconds, tt.minutes, got)
		}
	}
}

func TestManualClock(t *testing.T) {
	m := NewManual(kickoff)
	m.Advance(125 * time.Second)
	if got := m.Now().Sub(kickoff); got != 125*time.Second {
		t.Errorf("Expected 125s, got %v", got)
	}
}
