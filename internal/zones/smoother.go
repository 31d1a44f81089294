package zones

// DefaultSmoothingWindow averages about one second of trainer updates.
const DefaultSmoothingWindow = 3

// Smoother is a moving average over the last few power values.
// It is not safe for concurrent use.
type Smoother struct {
	window []uint16
	next   int
	filled int
	sum    uint32
}

// NewSmoother returns a Smoother averaging up to size values. A size below 1
// disables smoothing.
func NewSmoother(size int) *Smoother {
	if size < 1 {
		size = 1
	}
	return &Smoother{window: make([]uint16, size)}
}

// Add records power and returns the current average, truncated.
func (s *Smoother) Add(power uint16) uint16 {
	if s.filled == len(s.window) {
		s.sum -= uint32(s.window[s.next])
	} else {
		s.filled++
	}
	s.window[s.next] = power
	s.sum += uint32(power)
	s.next = (s.next + 1) % len(s.window)
	return uint16(s.sum / uint32(s.filled))
}

// Reset forgets every recorded value.
func (s *Smoother) Reset() {
	s.next, s.filled, s.sum = 0, 0, 0
}
