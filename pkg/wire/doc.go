// Package wire encodes and decodes the little-endian scalars, tuples and
// UTF-16LE strings of the NMC socket protocol.
//
// Every decoder checks that its input has exactly the requested length and
// returns ErrMalformedData otherwise. The frame helpers operate on the data
// frame payload after its 4-byte type marker.
package wire
