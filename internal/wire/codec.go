package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nbro/multi-paxos/internal/ballot"
)

// ErrUnknownTag is returned by Decode when a datagram's leading tag byte
// does not match any known Tag. Callers are expected to drop such
// datagrams silently rather than treat this as fatal.
var ErrUnknownTag = errors.New("wire: unknown message tag")

// ErrTruncated is returned by Decode when a datagram ends before all the
// fields its tag requires have been read.
var ErrTruncated = errors.New("wire: truncated message")

// Encode serializes m into a byte-identical, fixed-width, big-endian
// encoding that Decode can round-trip exactly. Only the fields
// meaningful for m.Tag are written.
func Encode(m Message) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(m.Tag))
	writeRoleID(buf, m.From)

	switch m.Tag {
	case Propose:
		writeValue(buf, m.Value)
	case Phase1A:
		writeSlot(buf, m.Slot)
		writeBallot(buf, m.Ballot)
	case Phase1B:
		writeSlot(buf, m.Slot)
		writeBallot(buf, m.PromisedBallot)
		writeBallot(buf, m.AcceptedBallot)
		writeBool(buf, m.HasAcceptedValue)
		writeValue(buf, m.AcceptedValue)
	case Phase2A:
		writeSlot(buf, m.Slot)
		writeBallot(buf, m.Ballot)
		writeValue(buf, m.Value)
	case Phase2B:
		writeSlot(buf, m.Slot)
		writeBallot(buf, m.Ballot)
		writeBool(buf, m.OK)
		writeBallot(buf, m.PromisedBallot)
	case Decision:
		writeSlot(buf, m.Slot)
		writeValue(buf, m.Value)
	case CatchupReq:
		binary.Write(buf, binary.BigEndian, m.HighestKnownSlot)
	case CatchupResp:
		writeRoleID(buf, m.ToLearner)
		writeSlot(buf, m.Slot)
		writeValue(buf, m.Value)
	}
	return buf.Bytes()
}

// Decode parses a datagram previously produced by Encode. An unrecognized
// tag yields ErrUnknownTag (a datagram too short to hold the tag and the
// sender id yields ErrTruncated instead); callers should drop the
// datagram rather than surface this as an operational error.
func Decode(data []byte) (Message, error) {
	r := bytes.NewReader(data)
	var tagByte byte
	var err error
	if tagByte, err = readByte(r); err != nil {
		return Message{}, ErrTruncated
	}
	m := Message{Tag: Tag(tagByte)}
	if m.From, err = readRoleID(r); err != nil {
		return Message{}, ErrTruncated
	}

	switch m.Tag {
	case Propose:
		if m.Value, err = readValue(r); err != nil {
			return Message{}, ErrTruncated
		}
	case Phase1A:
		if m.Slot, err = readSlot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Ballot, err = readBallot(r); err != nil {
			return Message{}, ErrTruncated
		}
	case Phase1B:
		if m.Slot, err = readSlot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.PromisedBallot, err = readBallot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.AcceptedBallot, err = readBallot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.HasAcceptedValue, err = readBool(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.AcceptedValue, err = readValue(r); err != nil {
			return Message{}, ErrTruncated
		}
	case Phase2A:
		if m.Slot, err = readSlot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Ballot, err = readBallot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Value, err = readValue(r); err != nil {
			return Message{}, ErrTruncated
		}
	case Phase2B:
		if m.Slot, err = readSlot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Ballot, err = readBallot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.OK, err = readBool(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.PromisedBallot, err = readBallot(r); err != nil {
			return Message{}, ErrTruncated
		}
	case Decision:
		if m.Slot, err = readSlot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Value, err = readValue(r); err != nil {
			return Message{}, ErrTruncated
		}
	case CatchupReq:
		if err := binary.Read(r, binary.BigEndian, &m.HighestKnownSlot); err != nil {
			return Message{}, ErrTruncated
		}
	case CatchupResp:
		if m.ToLearner, err = readRoleID(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Slot, err = readSlot(r); err != nil {
			return Message{}, ErrTruncated
		}
		if m.Value, err = readValue(r); err != nil {
			return Message{}, ErrTruncated
		}
	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownTag, tagByte)
	}
	return m, nil
}

func writeRoleID(buf *bytes.Buffer, id ballot.RoleID) {
	binary.Write(buf, binary.BigEndian, uint32(id))
}

func readRoleID(r *bytes.Reader) (ballot.RoleID, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return ballot.RoleID(v), nil
}

func writeSlot(buf *bytes.Buffer, s ballot.Slot) {
	binary.Write(buf, binary.BigEndian, uint64(s))
}

func readSlot(r *bytes.Reader) (ballot.Slot, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return ballot.Slot(v), nil
}

func writeBallot(buf *bytes.Buffer, b ballot.Number) {
	binary.Write(buf, binary.BigEndian, b.Round)
	writeRoleID(buf, b.ProposerID)
}

func readBallot(r *bytes.Reader) (ballot.Number, error) {
	var round uint32
	if err := binary.Read(r, binary.BigEndian, &round); err != nil {
		return ballot.Number{}, err
	}
	proposerID, err := readRoleID(r)
	if err != nil {
		return ballot.Number{}, err
	}
	return ballot.Number{Round: round, ProposerID: proposerID}, nil
}

func writeValue(buf *bytes.Buffer, v Value) {
	writeRoleID(buf, v.ClientID)
	binary.Write(buf, binary.BigEndian, v.ClientSeq)
	binary.Write(buf, binary.BigEndian, v.Payload)
}

func readValue(r *bytes.Reader) (Value, error) {
	clientID, err := readRoleID(r)
	if err != nil {
		return Value{}, err
	}
	var seq uint64
	if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
		return Value{}, err
	}
	var payload int64
	if err := binary.Read(r, binary.BigEndian, &payload); err != nil {
		return Value{}, err
	}
	return Value{ClientID: clientID, ClientSeq: seq, Payload: payload}, nil
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := readByte(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func readByte(r *bytes.Reader) (byte, error) {
	return r.ReadByte()
}
