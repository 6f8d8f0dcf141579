package panel

// KeyEvent is a debounced press or release of one key.
type KeyEvent struct {
	Index   int
	Pressed bool
}

// EncoderCounter is a free-running signed position counter for one encoder.
// It is updated outside the poll loop.
type EncoderCounter interface {
	Position() int
}

// KeyQueue hands out buffered key events oldest first. Next must not block;
// it returns false when nothing is pending.
type KeyQueue interface {
	Next() (KeyEvent, bool)
}

// Sender puts encoded messages on the wire.
type Sender interface {
	Send(msg []byte) error
}

// Resetter is implemented by senders whose link can be torn down and
// reopened after a write failure.
type Resetter interface {
	Reset() error
}
