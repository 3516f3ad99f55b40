package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrMalformedData is returned when a buffer does not match the requested layout.
	ErrMalformedData = errors.New("wire: malformed data")

	// ErrBrokenPackage is returned when a frame payload is shorter than a frame.
	ErrBrokenPackage = errors.New("wire: broken package")
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// PutInt32 encodes v as 4 little-endian bytes.
func PutInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// Int32 decodes exactly 4 bytes.
func Int32(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: int32 from %d bytes", ErrMalformedData, len(b))
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// PutInt32s encodes a tuple of int32 values.
func PutInt32s(vs ...int32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b
}

// Int32s decodes n int32 values from exactly 4*n bytes.
func Int32s(b []byte, n int) ([]int32, error) {
	if n < 0 || len(b) != 4*n {
		return nil, fmt.Errorf("%w: %d int32 from %d bytes", ErrMalformedData, n, len(b))
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// PutInt16s encodes a tuple of int16 values.
func PutInt16s(vs ...int16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

// Int16s decodes n int16 values from exactly 2*n bytes.
func Int16s(b []byte, n int) ([]int16, error) {
	if n < 0 || len(b) != 2*n {
		return nil, fmt.Errorf("%w: %d int16 from %d bytes", ErrMalformedData, n, len(b))
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out, nil
}

// EncodeName converts name to UTF-16LE without a byte order mark and returns
// the bytes together with the length in UTF-16 code units.
func EncodeName(name string) ([]byte, int32, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, 0, fmt.Errorf("encode name %q: %w", name, err)
	}
	return b, int32(len(b) / 2), nil
}

// DecodeName converts UTF-16LE bytes back to a string.
func DecodeName(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 length %d", ErrMalformedData, len(b))
	}
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return string(s), nil
}
