// Package protocol implements the binary frame layer for peerlink channels.
//
// A unix-domain socket is a byte stream, so record boundaries need explicit
// framing: a fixed 10-byte header followed by a variable-length body. The
// receiver reads the header first to learn the body length, then reads exactly
// that many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10
//	┌──────┬──┬──┬──┬─────────┬───────────────┐
//	│magic │v │ct│mt│ bodyLen │    body ...    │
//	│ plk  │01│  │  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────────┘
//
// There is no sequence number: a channel carries exactly one request and its
// response (or one stream session), so there is never more than one exchange
// in flight to correlate.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "plk". Used to reject non-protocol connections (for
// example a stray client poking the socket) before reading a bogus length.
const (
	MagicNumber byte = 0x70 // 'p'
	MagicByte2  byte = 0x6c // 'l'
	MagicByte3  byte = 0x6b // 'k'
	Version     byte = 0x01
	HeaderSize  int  = 10 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (bodyLen)
)

// MsgType distinguishes the three frame roles on a channel.
type MsgType byte

const (
	MsgTypeRequest  MsgType = 0 // caller → target invocation
	MsgTypeResponse MsgType = 1 // unary reply or stream session header
	MsgTypeChunk    MsgType = 2 // one element of an in-progress stream
)

// Codec type constants, mirrored from the codec package to avoid a circular
// import.
const (
	CodecTypeJSON   byte = 0
	CodecTypeBinary byte = 1
)

// Header is the fixed 10-byte frame header.
type Header struct {
	CodecType byte    // Serialization format of the body: 0=JSON, 1=Binary
	MsgType   MsgType // Request, Response, or Chunk
	BodyLen   uint32  // Body length in bytes
}

// Encode writes a complete frame (header + body) to w.
// The channel owning w is exclusive to one in-flight call, so no write lock
// is needed here; the server's stream pump is the only sequential writer.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.BodyLen)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return nil
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version, codec type, and message type, and
// uses io.ReadFull so partial reads can never split a frame.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}
	if headerBuf[4] != CodecTypeJSON && headerBuf[4] != CodecTypeBinary {
		return nil, nil, fmt.Errorf("unsupported codec type: %d", headerBuf[4])
	}
	msgType := headerBuf[5]
	if msgType > byte(MsgTypeChunk) {
		return nil, nil, fmt.Errorf("unsupported message type: %d", msgType)
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[6:10])
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		MsgType:   MsgType(msgType),
		BodyLen:   bodyLen,
	}, body, nil
}
