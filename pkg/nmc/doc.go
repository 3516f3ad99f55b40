// Package nmc implements the client side of the NMC server socket protocol.
//
// A client connects to the server, registers under a display name and then
// reads a stream of messages. Every message starts with a little-endian int32
// sender field. Zero means a server command follows:
//
//	0, 0                         server asks the client to disconnect
//	0, 0x7FFFFFFF                keep-alive poll, no payload
//	0, 1,  id, nameLen, name     a client joined
//	0, -1, id, nameLen, name     a client left
//
// Any other sender prefixes a client-to-client message: an int32 length and
// that many payload bytes. Data frames are client messages whose payload
// starts with the int32 FrameType.
//
// The nmctest subpackage provides an in-process server for tests.
package nmc
