package input

import "sync/atomic"

// Counter accumulates relative encoder steps into a signed position, the
// way a hardware quadrature counter does. Position divides the raw count by
// the divisor, rounding toward negative infinity, so detented encoders that
// report several edges per click still read one step per click.
type Counter struct {
	raw     atomic.Int64
	divisor int64
	invert  bool
}

func NewCounter(divisor int, invert bool) *Counter {
	if divisor < 1 {
		divisor = 1
	}
	return &Counter{divisor: int64(divisor), invert: invert}
}

// Add moves the counter by n raw steps.
func (c *Counter) Add(n int32) {
	if c.invert {
		n = -n
	}
	c.raw.Add(int64(n))
}

func (c *Counter) Position() int {
	return int(floorDiv(c.raw.Load(), c.divisor))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
