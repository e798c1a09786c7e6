package energy

import (
	"math"
	"time"
)

const rollingBuckets = 60

type minMaxBucket struct {
	min, max float64
}

func emptyBucket() minMaxBucket {
	return minMaxBucket{min: math.Inf(1), max: math.Inf(-1)}
}

// RollingMinMax tracks the extremes of a reading over the trailing hour
// using one bucket per wall-clock minute.
type RollingMinMax struct {
	buckets [rollingBuckets]minMaxBucket
	minute  int64 // unix minute of the newest bucket
	started bool
}

func NewRollingMinMax() *RollingMinMax {
	r := &RollingMinMax{}
	for i := range r.buckets {
		r.buckets[i] = emptyBucket()
	}
	return r
}

// Observe records value at time at. Readings older than the newest bucket are folded into it.
func (r *RollingMinMax) Observe(value float64, at time.Time) {
	r.Advance(at)

	b := &r.buckets[bucketIndex(r.minute)]
	b.min = min(b.min, value)
	b.max = max(b.max, value)
}

// Advance moves the newest bucket up to now, clearing minutes that have aged out.
// Times at or before the newest bucket change nothing.
func (r *RollingMinMax) Advance(now time.Time) {
	minute := now.Unix() / 60
	if r.started && minute <= r.minute {
		return
	}

	if !r.started || minute-r.minute >= rollingBuckets {
		for i := range r.buckets {
			r.buckets[i] = emptyBucket()
		}
	} else {
		for m := r.minute + 1; m <= minute; m++ {
			r.buckets[bucketIndex(m)] = emptyBucket()
		}
	}
	r.minute = minute
	r.started = true
}

// bucketIndex maps a unix minute to its bucket, including minutes before 1970
func bucketIndex(minute int64) int {
	return int((minute%rollingBuckets + rollingBuckets) % rollingBuckets)
}

// Min returns the smallest value seen in the last hour. ok is false without data.
func (r *RollingMinMax) Min() (float64, bool) {
	result := math.Inf(1)
	for _, b := range r.buckets {
		result = min(result, b.min)
	}
	return result, !math.IsInf(result, 1)
}

// Max returns the largest value seen in the last hour. ok is false without data.
func (r *RollingMinMax) Max() (float64, bool) {
	result := math.Inf(-1)
	for _, b := range r.buckets {
		result = max(result, b.max)
	}
	return result, !math.IsInf(result, -1)
}
