package sqlpoll

import (
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

const (
	// DefaultStepSeconds is how far a window reaches per attempt
	DefaultStepSeconds int64 = 600
	// DefaultSafetyMarginSeconds keeps windows clear of uncommitted rows
	DefaultSafetyMarginSeconds int64 = 10
)

// Window is the [Lower, Upper) range scoped by one extraction query
type Window = core.Window

// ComputeUpperBound returns the upper bound of the next window and whether it
// was clamped to now minus the safety margin (the final step). A database clock
// that is behind the cursor yields an empty window at the cursor.
func ComputeUpperBound(cursor, nowFromDB, attempt, safetyMarginSeconds, stepSeconds int64) (int64, bool) {
	if attempt < 1 {
		attempt = 1
	}
	limit := nowFromDB - safetyMarginSeconds
	if limit < cursor {
		return cursor, true
	}
	// compare through division so huge steps or attempts cannot overflow
	if stepSeconds > 0 && attempt > (limit-cursor)/stepSeconds {
		return limit, true
	}
	candidate := cursor + stepSeconds*attempt
	if candidate >= limit {
		return limit, true
	}
	return candidate, false
}

// WindowCalculator computes query windows from the configured step and margin
type WindowCalculator struct {
	StepSeconds         int64
	SafetyMarginSeconds int64
}

// NewWindowCalculator creates a calculator, falling back to the defaults for
// non-positive steps and negative margins.
func NewWindowCalculator(stepSeconds, safetyMarginSeconds int64) WindowCalculator {
	if stepSeconds <= 0 {
		stepSeconds = DefaultStepSeconds
	}
	if safetyMarginSeconds < 0 {
		safetyMarginSeconds = DefaultSafetyMarginSeconds
	}
	return WindowCalculator{StepSeconds: stepSeconds, SafetyMarginSeconds: safetyMarginSeconds}
}

// Next returns the window starting at cursor and whether it is the final step
func (w WindowCalculator) Next(cursor Cursor, now int64, attempt int64) (Window, bool) {
	upper, final := ComputeUpperBound(int64(cursor), now, attempt, w.SafetyMarginSeconds, w.StepSeconds)
	return Window{Lower: int64(cursor), Upper: upper}, final
}
