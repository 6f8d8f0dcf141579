package panel

import (
	"gitlab.com/gomidi/midi/v2"
)

const (
	// DefaultChannel is the wire channel nibble every message is sent on
	// (status byte 0xBF).
	DefaultChannel = 15

	ValueOn  = 127
	ValueOff = 0

	// MaxController is the highest 7-bit controller number.
	MaxController = 127
)

// CC is one outbound Control Change event.
type CC struct {
	Controller uint8
	Value      uint8
}

// Encode builds the on-wire representation:
//
//	[0xB0|channel][controller][value]
func (c CC) Encode(channel uint8) []byte {
	return []byte(midi.ControlChange(channel&0x0F, c.Controller&0x7F, c.Value&0x7F))
}

// Decode is the inverse of Encode. ok is false for anything that is not a
// Control Change.
func Decode(b []byte) (cc CC, channel uint8, ok bool) {
	ok = midi.Message(b).GetControlChange(&channel, &cc.Controller, &cc.Value)
	return cc, channel, ok
}

func tickValue(delta int) uint8 {
	if delta > 0 {
		return ValueOn
	}
	return ValueOff
}

func keyValue(pressed bool) uint8 {
	if pressed {
		return ValueOn
	}
	return ValueOff
}
