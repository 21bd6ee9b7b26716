package timex

import (
	"time"

	"golang.org/x/exp/constraints"
)

// NowMs returns Unix milliseconds as int64, the ts_ms of published state.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count from a config payload to a Duration.
// Fractions are kept for float inputs.
func Ms[T constraints.Integer | constraints.Float](ms T) time.Duration {
	return time.Duration(float64(ms) * float64(time.Millisecond))
}
