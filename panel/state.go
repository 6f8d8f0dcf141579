package panel

// encoderState holds the last committed position of every encoder.
type encoderState struct {
	last []int
}

func newEncoderState(encoders []EncoderCounter) *encoderState {
	s := &encoderState{last: make([]int, len(encoders))}
	for i, e := range encoders {
		s.last[i] = e.Position()
	}
	return s
}

func (s *encoderState) delta(ch, current int) int {
	return current - s.last[ch]
}

func (s *encoderState) commit(ch, pos int) {
	s.last[ch] = pos
}

// advance moves the snapshot by n ticks in the direction of delta.
func (s *encoderState) advance(ch, delta, n int) {
	if delta < 0 {
		n = -n
	}
	s.last[ch] += n
}
