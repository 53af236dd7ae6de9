package transport

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"peerlink/codec"
	"peerlink/message"
	"peerlink/protocol"
)

// Channel is one bidirectional connection to a single application.
//
// It is exclusively owned by one in-flight call or one streaming session for
// its whole lifetime, so reads and writes need no locking here. The reader is
// buffered once so Poll's one-byte peek and the subsequent frame decode see
// the same stream position.
type Channel struct {
	conn      net.Conn
	br        *bufio.Reader
	codecType codec.CodecType

	closeOnce sync.Once
	closeErr  error
}

// NewChannel wraps an established connection. The codec type is what this
// side writes with; incoming frames declare their own codec in the header.
func NewChannel(conn net.Conn, codecType codec.CodecType) *Channel {
	return &Channel{
		conn:      conn,
		br:        bufio.NewReader(conn),
		codecType: codecType,
	}
}

// Send encodes a record and writes it as one frame. Requests and responses
// (including stream session headers) go through here; in-stream chunks use
// SendChunk so the frame layer can tell the two apart.
func (ch *Channel) Send(v any) error {
	switch v.(type) {
	case *message.Request:
		return ch.send(v, protocol.MsgTypeRequest)
	case *message.Response:
		return ch.send(v, protocol.MsgTypeResponse)
	default:
		return fmt.Errorf("transport: cannot send %T", v)
	}
}

// SendChunk writes one stream chunk frame.
func (ch *Channel) SendChunk(chunk *message.Response) error {
	return ch.send(chunk, protocol.MsgTypeChunk)
}

func (ch *Channel) send(v any, msgType protocol.MsgType) error {
	cdc := codec.GetCodec(ch.codecType)
	body, err := cdc.Encode(v)
	if err != nil {
		return err
	}
	header := protocol.Header{
		CodecType: byte(ch.codecType),
		MsgType:   msgType,
		BodyLen:   uint32(len(body)),
	}
	return protocol.Encode(ch.conn, &header, body)
}

// RecvRequest blocks for the next frame and decodes it as a Request.
func (ch *Channel) RecvRequest() (*message.Request, error) {
	header, body, err := protocol.Decode(ch.br)
	if err != nil {
		return nil, err
	}
	if header.MsgType != protocol.MsgTypeRequest {
		return nil, fmt.Errorf("expected request frame, got message type %d", header.MsgType)
	}
	req := &message.Request{}
	if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, req); err != nil {
		return nil, err
	}
	return req, nil
}

// RecvResponse blocks for the next frame and decodes it as a Response.
// Both unary replies and stream session headers arrive through here.
func (ch *Channel) RecvResponse() (*message.Response, error) {
	return ch.recvResponse(protocol.MsgTypeResponse)
}

// RecvChunk blocks for the next frame and decodes it as a stream chunk.
func (ch *Channel) RecvChunk() (*message.Response, error) {
	return ch.recvResponse(protocol.MsgTypeChunk)
}

func (ch *Channel) recvResponse(want protocol.MsgType) (*message.Response, error) {
	header, body, err := protocol.Decode(ch.br)
	if err != nil {
		return nil, err
	}
	if header.MsgType != want {
		return nil, fmt.Errorf("expected message type %d, got %d", want, header.MsgType)
	}
	resp := &message.Response{}
	if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Poll reports whether at least one byte is readable within timeout.
// (false, nil) means the timeout elapsed quietly; (false, err) means the
// connection failed while waiting, which callers fold into their own
// connection-lost error.
func (ch *Channel) Poll(timeout time.Duration) (bool, error) {
	if err := ch.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	defer ch.conn.SetReadDeadline(time.Time{})

	_, err := ch.br.Peek(1)
	if err == nil {
		return true, nil
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return false, nil
	}
	return false, err
}

// Close tears the channel down. Safe to call from any exit path more than
// once; the remote side must tolerate an early close mid-stream.
func (ch *Channel) Close() error {
	ch.closeOnce.Do(func() {
		ch.closeErr = ch.conn.Close()
	})
	return ch.closeErr
}
