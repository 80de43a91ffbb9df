package game

import (
	"testing"
	"time"
)

func TestColor_Valid(t *testing.T) {
	tests := []struct {
		name  string
		color Color
		want  bool
	}{
		{"red is valid", ColorRed, true},
		{"green is valid", ColorGreen, true},
		{"violet is valid", ColorViolet, true},
		{"empty is invalid", Color(""), false},
		{"unknown is invalid", Color("blue"), false},
		{"case sensitive", Color("Red"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.color.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColor_Multiplier(t *testing.T) {
	tests := []struct {
		color Color
		want  int64
	}{
		{ColorRed, 2},
		{ColorGreen, 5},
		{ColorViolet, 10},
		{Color("blue"), 0},
	}

	for _, tt := range tests {
		if got := tt.color.Multiplier(); got != tt.want {
			t.Errorf("Multiplier(%s) = %d, want %d", tt.color, got, tt.want)
		}
	}
}

func TestRound_Open(t *testing.T) {
	now := time.Now()
	result := ColorRed

	tests := []struct {
		name  string
		round Round
		want  bool
	}{
		{
			name:  "future close time and no result",
			round: Round{ClosesAt: now.Add(time.Minute)},
			want:  true,
		},
		{
			name:  "close time passed",
			round: Round{ClosesAt: now.Add(-time.Second)},
			want:  false,
		},
		{
			name:  "result set closes the round even before close time",
			round: Round{ClosesAt: now.Add(time.Minute), Result: &result},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.round.Open(now); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	now := time.Now()

	t.Run("time left counts down from stored close time", func(t *testing.T) {
		round := Round{RoundNumber: 100001, ClosesAt: now.Add(90 * time.Second)}
		snap := Snapshot(round, nil, now)

		if snap.RoundNumber != 100001 {
			t.Errorf("RoundNumber = %d, want 100001", snap.RoundNumber)
		}
		if snap.TimeLeft < 89 || snap.TimeLeft > 90 {
			t.Errorf("TimeLeft = %d, want ~90", snap.TimeLeft)
		}
		if snap.LastResult != nil {
			t.Errorf("LastResult = %v, want nil", snap.LastResult)
		}
	})

	t.Run("elapsed round clamps to zero", func(t *testing.T) {
		round := Round{RoundNumber: 100002, ClosesAt: now.Add(-time.Minute)}
		snap := Snapshot(round, nil, now)

		if snap.TimeLeft != 0 {
			t.Errorf("TimeLeft = %d, want 0", snap.TimeLeft)
		}
	})

	t.Run("carries the last settled result", func(t *testing.T) {
		result := ColorViolet
		round := Round{RoundNumber: 100003, ClosesAt: now.Add(time.Minute)}
		snap := Snapshot(round, &result, now)

		if snap.LastResult == nil || *snap.LastResult != ColorViolet {
			t.Errorf("LastResult = %v, want violet", snap.LastResult)
		}
	})
}
