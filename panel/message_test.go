package panel

import (
	"bytes"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		cc      CC
		channel uint8
		want    []byte
	}{
		{CC{Controller: 0, Value: 127}, 15, []byte{0xBF, 0x00, 0x7F}},
		{CC{Controller: 9, Value: 0}, 15, []byte{0xBF, 0x09, 0x00}},
		{CC{Controller: 3, Value: 64}, 0, []byte{0xB0, 0x03, 0x40}},
	}
	for _, tt := range tests {
		if got := tt.cc.Encode(tt.channel); !bytes.Equal(got, tt.want) {
			t.Errorf("%+v.Encode(%d) = % X, want % X", tt.cc, tt.channel, got, tt.want)
		}
	}
}

func TestDecodeRejectsOtherMessages(t *testing.T) {
	if _, _, ok := Decode([]byte{0x9F, 0x3C, 0x40}); ok {
		t.Fatal("note on decoded as control change")
	}
}
