package wire

import (
	"fmt"

	"github.com/bft-labs/rankflow/internal/domain"
)

// Frame payload layout, relative to the byte after the type marker.
const (
	timeBeginOffset  = 0
	timeEndOffset    = 16
	reservedOffset   = 32
	sampleRateOffset = 60
	samplesOffset    = 64

	// FramePayloadSize is the number of bytes a frame occupies after its marker.
	FramePayloadSize = samplesOffset + 2*domain.FrameChannels*domain.FrameSamples
)

// EncodeFrame lays f out as a frame payload. The reserved bytes are zero.
func EncodeFrame(f domain.Frame) []byte {
	b := make([]byte, 0, FramePayloadSize)
	b = append(b, PutInt16s(f.TimeBegin[:]...)...)
	b = append(b, PutInt16s(f.TimeEnd[:]...)...)
	b = append(b, make([]byte, sampleRateOffset-reservedOffset)...)
	b = append(b, PutInt32(f.SampleRateRaw)...)
	for c := range f.Samples {
		b = append(b, PutInt16s(f.Samples[c][:]...)...)
	}
	return b
}

// DecodeFrame parses a frame payload. Trailing bytes beyond FramePayloadSize
// are ignored; a shorter payload is ErrBrokenPackage.
func DecodeFrame(b []byte) (domain.Frame, error) {
	var f domain.Frame
	if len(b) < FramePayloadSize {
		return f, fmt.Errorf("%w: %d of %d bytes", ErrBrokenPackage, len(b), FramePayloadSize)
	}

	begin, err := Int16s(b[timeBeginOffset:timeEndOffset], domain.TimeFields)
	if err != nil {
		return f, err
	}
	end, err := Int16s(b[timeEndOffset:reservedOffset], domain.TimeFields)
	if err != nil {
		return f, err
	}
	copy(f.TimeBegin[:], begin)
	copy(f.TimeEnd[:], end)

	if f.SampleRateRaw, err = Int32(b[sampleRateOffset:samplesOffset]); err != nil {
		return f, err
	}

	samples, err := Int16s(b[samplesOffset:FramePayloadSize], domain.FrameChannels*domain.FrameSamples)
	if err != nil {
		return f, err
	}
	for c := range f.Samples {
		copy(f.Samples[c][:], samples[c*domain.FrameSamples:])
	}
	return f, nil
}
