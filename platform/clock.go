// Package platform collects the small set of OS-touching primitives every
// other package in this module builds on: a monotonic millisecond clock, a
// saturating timeout calculator, and a pollable-descriptor multiplexer with
// per-OS backends.
package platform

import "time"

// bootTime anchors Millis to process start so callers never see huge
// wall-clock-derived values that would overflow int math in adjust_timeout
// style computations.
var bootTime = time.Now()

// Millis returns a monotonic millisecond timestamp. It has no relation to
// wall-clock time; only differences between two calls are meaningful.
func Millis() int64 {
	return time.Since(bootTime).Milliseconds()
}

// AdjustTimeout computes the time remaining out of timeoutMs given that
// start (a Millis() value) marks when the caller began waiting. A timeout of
// -1 means "wait forever" and passes through unchanged. The result never
// goes negative: once the budget is exhausted it saturates at 0 rather than
// wrapping, so a caller can always pass it straight to poll's timeoutMs
// without an extra clamp.
func AdjustTimeout(timeoutMs int, start int64) int {
	if timeoutMs < 0 {
		return -1
	}
	elapsed := Millis() - start
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := int64(timeoutMs) - elapsed
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}
