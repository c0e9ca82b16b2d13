package wire

import "gostomp/frame"

// Serializer renders frames and heart-beats to their wire form. It holds no
// state; Frame.Serialize does the actual encoding, keyed off the version
// stamped on the frame itself, so Serializer exists mainly to give callers
// a single symmetric type to pair with Parser.
type Serializer struct{}

// NewSerializer returns a ready-to-use Serializer.
func NewSerializer() *Serializer { return &Serializer{} }

// Serialize renders f to its wire bytes.
func (*Serializer) Serialize(f *frame.Frame) ([]byte, error) {
	return f.Serialize()
}

// SerializeHeartBeat renders a heart-beat to its one-byte wire form.
func (*Serializer) SerializeHeartBeat(hb *frame.HeartBeat) []byte {
	return hb.Serialize()
}
