package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den events through. A zero ratio lets
// everything through.
type sampler struct {
	num atomic.Int64
	den atomic.Int64
	n   atomic.Uint64
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.num.Store(int64(min(num, den)))
	s.den.Store(int64(den))
	s.n.Store(0)
}

func (s *sampler) allow() bool {
	den := s.den.Load()
	if den <= 0 {
		return true
	}
	i := s.n.Add(1) - 1
	return int64(i%uint64(den)) < s.num.Load()
}

// parseRatio reads "n/d", or "d" as 1/d. "0" and "off" disable sampling.
// ok is false for anything unreadable.
func parseRatio(spec string) (num, den int, ok bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "off" || spec == "0" {
		return 0, 0, true
	}
	a, b, frac := strings.Cut(spec, "/")
	n, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil || n <= 0 {
		return 0, 0, false
	}
	if !frac {
		return 1, n, true
	}
	d, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil || d <= 0 {
		return 0, 0, false
	}
	return n, d, true
}
