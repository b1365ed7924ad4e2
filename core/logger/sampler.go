package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler passes keep out of every period events. A zero period passes all.
type sampler struct {
	keep   atomic.Uint32
	period atomic.Uint32
	seen   atomic.Uint64
}

func newSampler(keep, period int) *sampler {
	s := &sampler{}
	s.Set(keep, period)
	return s
}

// Set changes the ratio and restarts the cycle.
func (s *sampler) Set(keep, period int) {
	if keep <= 0 || period <= 0 {
		keep, period = 0, 0
	}
	keep = min(keep, period)
	s.keep.Store(uint32(keep))
	s.period.Store(uint32(period))
	s.seen.Store(0)
}

// Allow reports whether the next event should be logged.
func (s *sampler) Allow() bool {
	period := uint64(s.period.Load())
	if period == 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return n%period < uint64(s.keep.Load())
}

// parseSample reads "k/n" or "n" (shorthand for 1/n). Zero or "off" disables
// sampling; ok is false for malformed input.
func parseSample(raw string) (keep, period int, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return 0, 0, false
	case "0", "off", "all":
		return 0, 0, true
	}
	num, den, found := strings.Cut(raw, "/")
	if !found {
		num, den = "1", num
	}
	k, err1 := strconv.Atoi(strings.TrimSpace(num))
	p, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil || k <= 0 || p <= 0 {
		return 0, 0, false
	}
	return k, p, true
}
