package sqlpoll

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeUpperBound(t *testing.T) {
	tests := []struct {
		name      string
		cursor    int64
		now       int64
		attempt   int64
		margin    int64
		step      int64
		wantUpper int64
		wantFinal bool
	}{
		{"first step of a backlog", 1000, 2000, 1, 10, 600, 1600, false},
		{"second attempt reaches the present", 1000, 2000, 2, 10, 600, 1990, true},
		{"candidate equal to limit is final", 1000, 1610, 1, 10, 600, 1600, true},
		{"zero attempt counts as one", 1000, 2000, 0, 10, 600, 1600, false},
		{"negative attempt counts as one", 1000, 2000, -3, 10, 600, 1600, false},
		{"caught up cursor", 1985, 2000, 1, 10, 600, 1990, true},
		{"cursor at the limit", 1990, 2000, 1, 10, 600, 1990, true},
		{"database clock behind cursor", 5000, 2000, 4, 10, 600, 5000, true},
		{"no margin", 0, 100, 1, 0, 600, 100, true},
		{"huge step clamps instead of wrapping", 1000, 2000, 2, 10, math.MaxInt64, 1990, true},
		{"huge attempt clamps instead of wrapping", 1000, 2000, math.MaxInt64, 10, 600, 1990, true},
		{"huge cursor near the limit", math.MaxInt64 - 700, math.MaxInt64, 1, 10, math.MaxInt64 / 2, math.MaxInt64 - 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upper, final := ComputeUpperBound(tt.cursor, tt.now, tt.attempt, tt.margin, tt.step)
			assert.Equal(t, tt.wantUpper, upper)
			assert.Equal(t, tt.wantFinal, final)
		})
	}
}

func TestComputeUpperBound_Bounded(t *testing.T) {
	const margin, step = int64(10), int64(600)

	for cursor := int64(0); cursor <= 20000; cursor += 997 {
		for now := int64(0); now <= 30000; now += 1499 {
			for attempt := int64(1); attempt <= 40; attempt++ {
				upper, _ := ComputeUpperBound(cursor, now, attempt, margin, step)

				assert.GreaterOrEqual(t, upper, cursor, "upper below lower: cursor=%d now=%d attempt=%d", cursor, now, attempt)
				assert.LessOrEqual(t, upper-cursor, step*attempt, "window too wide: cursor=%d now=%d attempt=%d", cursor, now, attempt)
				if now-margin >= cursor {
					assert.LessOrEqual(t, upper, now-margin, "window past the limit: cursor=%d now=%d attempt=%d", cursor, now, attempt)
				}
			}
		}
	}
}

func TestWindowCalculator_Converges(t *testing.T) {
	calc := NewWindowCalculator(600, 10)
	cursor := Cursor(0)
	now := int64(100000)

	backlog := now - calc.SafetyMarginSeconds - int64(cursor)
	maxCycles := int(backlog/calc.StepSeconds) + 1

	attempt := int64(1)
	for cycle := 1; cycle <= maxCycles; cycle++ {
		w, final := calc.Next(cursor, now, attempt)
		assert.Equal(t, int64(cursor), w.Lower)
		if final {
			assert.Equal(t, now-calc.SafetyMarginSeconds, w.Upper)
			return
		}
		// nothing arrives, the loop widens the window
		attempt++
	}
	t.Fatalf("window did not reach now - margin within %d cycles", maxCycles)
}

func TestNewWindowCalculator_Defaults(t *testing.T) {
	calc := NewWindowCalculator(0, -1)
	assert.Equal(t, DefaultStepSeconds, calc.StepSeconds)
	assert.Equal(t, DefaultSafetyMarginSeconds, calc.SafetyMarginSeconds)

	calc = NewWindowCalculator(60, 0)
	assert.Equal(t, int64(60), calc.StepSeconds)
	assert.Equal(t, int64(0), calc.SafetyMarginSeconds)
}
