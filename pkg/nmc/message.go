package nmc

import (
	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/wire"
)

// Protocol constants.
const (
	// FrameType marks a client payload as a data frame.
	FrameType int32 = 6

	// CommandDisconnect asks the client to close the connection.
	CommandDisconnect int32 = 0

	// CommandPoll is a keep-alive without payload.
	CommandPoll int32 = 0x7FFFFFFF

	// CommandAddClient announces a client joining.
	CommandAddClient int32 = 1

	// CommandRemoveClient announces a client leaving.
	CommandRemoveClient int32 = -1

	// DefaultMaxMessageSize bounds the length field of client messages.
	DefaultMaxMessageSize = 1 << 20
)

// Message is an application payload sent by another client.
type Message struct {
	Sender  int32
	Payload []byte
}

// IsFrame reports whether the payload carries the data frame marker.
func (m Message) IsFrame() bool {
	if len(m.Payload) < 4 {
		return false
	}
	t, _ := wire.Int32(m.Payload[:4])
	return t == FrameType
}

// EncodeServerCommand builds a server command without a client record.
func EncodeServerCommand(cmd int32) []byte {
	return wire.PutInt32s(0, cmd)
}

// EncodeClientEvent builds an add or remove client command.
func EncodeClientEvent(cmd, id int32, name string) ([]byte, error) {
	nameBytes, units, err := wire.EncodeName(name)
	if err != nil {
		return nil, err
	}
	b := wire.PutInt32s(0, cmd, id, units)
	return append(b, nameBytes...), nil
}

// EncodeClientMessage builds a client-to-client message.
func EncodeClientMessage(sender int32, payload []byte) []byte {
	b := wire.PutInt32s(sender, int32(len(payload)))
	return append(b, payload...)
}

// EncodeFrameMessage wraps a frame in a client message from sender.
func EncodeFrameMessage(sender int32, f domain.Frame) []byte {
	payload := append(wire.PutInt32(FrameType), wire.EncodeFrame(f)...)
	return EncodeClientMessage(sender, payload)
}

// EncodeRegistration builds the name registration a client sends after connecting.
func EncodeRegistration(name string) ([]byte, error) {
	nameBytes, units, err := wire.EncodeName(name)
	if err != nil {
		return nil, err
	}
	return append(wire.PutInt32(units), nameBytes...), nil
}
