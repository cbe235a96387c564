// Package wire defines the five message types and the framing format
// (spec §6) that move between the proposer and its acceptors/clients.
// Transport and framing are explicitly out of scope for the proposer
// core (spec §1); this package is the boundary layer the network driver
// uses to turn bytes into the paxos package's request/ack structs and
// back.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Type is the fixed numeric message tag on the wire (spec §6 table).
type Type uint16

const (
	TypeSubmit Type = iota + 1
	TypePrepareReq
	TypePrepareAck
	TypeAcceptReq
	TypeAcceptAck
)

func (t Type) String() string {
	switch t {
	case TypeSubmit:
		return "submit"
	case TypePrepareReq:
		return "prepare_req"
	case TypePrepareAck:
		return "prepare_ack"
	case TypeAcceptReq:
		return "accept_req"
	case TypeAcceptAck:
		return "accept_ack"
	default:
		return "unknown"
	}
}

// Submit carries a client-submitted value (client -> proposer).
type Submit struct {
	Value []byte
}

// PrepareReq is a Phase 1 request (proposer -> acceptor).
type PrepareReq struct {
	IID    uint64
	Ballot uint64
}

// PrepareAck is a Phase 1 response (acceptor -> proposer). Value is nil
// when the acceptor had nothing accepted for this instance.
type PrepareAck struct {
	AcceptorID  uint32
	IID         uint64
	Ballot      uint64
	ValueBallot uint64
	Value       []byte
}

// AcceptReq is a Phase 2 request (proposer -> acceptor).
type AcceptReq struct {
	IID    uint64
	Ballot uint64
	Value  []byte
}

// AcceptAck is a Phase 2 response (acceptor -> proposer).
type AcceptAck struct {
	AcceptorID uint32
	IID        uint64
	Ballot     uint64
	Value      []byte
}

// ErrMessageTooLarge guards against a corrupt or hostile data_size field
// before the reader allocates a buffer for it.
var ErrMessageTooLarge = errors.New("wire: framed message exceeds maximum size")

// MaxFrameSize bounds data_size (spec §6's PAXOS_MAX_VALUE_SIZE plus
// generous headroom for the fixed fields every payload carries).
const MaxFrameSize = 16 << 20

// Encode serializes a typed message into its data_size-bytes payload.
// The frame header (type, data_size) is written separately by
// WriteFrame so callers that already know their payload length (e.g. a
// pre-sized buffer pool) can skip the intermediate allocation.
func Encode(msg interface{}) (Type, []byte, error) {
	switch m := msg.(type) {
	case Submit:
		return TypeSubmit, encodeSubmit(m), nil
	case PrepareReq:
		return TypePrepareReq, encodePrepareReq(m), nil
	case PrepareAck:
		return TypePrepareAck, encodePrepareAck(m), nil
	case AcceptReq:
		return TypeAcceptReq, encodeAcceptReq(m), nil
	case AcceptAck:
		return TypeAcceptAck, encodeAcceptAck(m), nil
	default:
		return 0, nil, errors.Errorf("wire: unsupported message type %T", msg)
	}
}

// Decode parses a payload of the given type into its typed message.
func Decode(t Type, payload []byte) (interface{}, error) {
	switch t {
	case TypeSubmit:
		return decodeSubmit(payload)
	case TypePrepareReq:
		return decodePrepareReq(payload)
	case TypePrepareAck:
		return decodePrepareAck(payload)
	case TypeAcceptReq:
		return decodeAcceptReq(payload)
	case TypeAcceptAck:
		return decodeAcceptAck(payload)
	default:
		return nil, errors.Errorf("wire: unknown message type %d", t)
	}
}

func encodeSubmit(m Submit) []byte {
	return append([]byte(nil), m.Value...)
}

func decodeSubmit(b []byte) (Submit, error) {
	return Submit{Value: append([]byte(nil), b...)}, nil
}

func encodePrepareReq(m PrepareReq) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], m.IID)
	binary.BigEndian.PutUint64(buf[8:16], m.Ballot)
	return buf
}

func decodePrepareReq(b []byte) (PrepareReq, error) {
	if len(b) < 16 {
		return PrepareReq{}, io.ErrUnexpectedEOF
	}
	return PrepareReq{
		IID:    binary.BigEndian.Uint64(b[0:8]),
		Ballot: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

func encodePrepareAck(m PrepareAck) []byte {
	buf := make([]byte, 4+8+8+8+4+len(m.Value))
	off := 0
	binary.BigEndian.PutUint32(buf[off:off+4], m.AcceptorID)
	off += 4
	binary.BigEndian.PutUint64(buf[off:off+8], m.IID)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], m.Ballot)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], m.ValueBallot)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(m.Value)))
	off += 4
	copy(buf[off:], m.Value)
	return buf
}

func decodePrepareAck(b []byte) (PrepareAck, error) {
	if len(b) < 32 {
		return PrepareAck{}, io.ErrUnexpectedEOF
	}
	off := 0
	m := PrepareAck{}
	m.AcceptorID = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	m.IID = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	m.Ballot = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	m.ValueBallot = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	valueSize := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	if uint32(len(b)-off) < valueSize {
		return PrepareAck{}, io.ErrUnexpectedEOF
	}
	if valueSize > 0 {
		m.Value = append([]byte(nil), b[off:off+int(valueSize)]...)
	}
	return m, nil
}

func encodeAcceptReq(m AcceptReq) []byte {
	buf := make([]byte, 8+8+4+len(m.Value))
	off := 0
	binary.BigEndian.PutUint64(buf[off:off+8], m.IID)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], m.Ballot)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(m.Value)))
	off += 4
	copy(buf[off:], m.Value)
	return buf
}

func decodeAcceptReq(b []byte) (AcceptReq, error) {
	if len(b) < 20 {
		return AcceptReq{}, io.ErrUnexpectedEOF
	}
	off := 0
	m := AcceptReq{}
	m.IID = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	m.Ballot = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	valueSize := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	if uint32(len(b)-off) < valueSize {
		return AcceptReq{}, io.ErrUnexpectedEOF
	}
	m.Value = append([]byte(nil), b[off:off+int(valueSize)]...)
	return m, nil
}

func encodeAcceptAck(m AcceptAck) []byte {
	buf := make([]byte, 4+8+8+4+len(m.Value))
	off := 0
	binary.BigEndian.PutUint32(buf[off:off+4], m.AcceptorID)
	off += 4
	binary.BigEndian.PutUint64(buf[off:off+8], m.IID)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], m.Ballot)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(m.Value)))
	off += 4
	copy(buf[off:], m.Value)
	return buf
}

func decodeAcceptAck(b []byte) (AcceptAck, error) {
	if len(b) < 24 {
		return AcceptAck{}, io.ErrUnexpectedEOF
	}
	off := 0
	m := AcceptAck{}
	m.AcceptorID = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	m.IID = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	m.Ballot = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	valueSize := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	if uint32(len(b)-off) < valueSize {
		return AcceptAck{}, io.ErrUnexpectedEOF
	}
	if valueSize > 0 {
		m.Value = append([]byte(nil), b[off:off+int(valueSize)]...)
	}
	return m, nil
}
