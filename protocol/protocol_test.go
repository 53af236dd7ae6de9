package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	header := Header{
		CodecType: CodecTypeJSON,
		MsgType:   MsgTypeRequest,
		BodyLen:   11,
	}
	body := []byte("hello world")

	var buf bytes.Buffer
	if err := Encode(&buf, &header, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decodedHeader, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decodedHeader.CodecType != header.CodecType {
		t.Errorf("CodecType mismatch: got %d, want %d", decodedHeader.CodecType, header.CodecType)
	}
	if decodedHeader.MsgType != header.MsgType {
		t.Errorf("MsgType mismatch: got %d, want %d", decodedHeader.MsgType, header.MsgType)
	}
	if decodedHeader.BodyLen != header.BodyLen {
		t.Errorf("BodyLen mismatch: got %d, want %d", decodedHeader.BodyLen, header.BodyLen)
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", string(decodedBody), string(body))
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, Version, CodecTypeJSON, byte(MsgTypeRequest), 0x00, 0x00, 0x00, 0x0B})
	buf.Write([]byte("hello world"))

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("Expected error for invalid magic number, but got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("invalid magic number")) {
		t.Errorf("Error message should contain 'invalid magic number', instead: %v", err)
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{
		MagicNumber, MagicByte2, MagicByte3,
		0xFF, // bad version
		CodecTypeJSON,
		byte(MsgTypeRequest),
		0, 0, 0, 0,
	})

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("Expected error for invalid version, but got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("unsupported version")) {
		t.Errorf("Error message should contain 'unsupported version', instead: %v", err)
	}
}

func TestDecodeInvalidMsgType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{
		MagicNumber, MagicByte2, MagicByte3,
		Version,
		CodecTypeJSON,
		0x07, // bad message type
		0, 0, 0, 0,
	})

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("Expected error for invalid message type, but got nil")
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	header := Header{
		CodecType: CodecTypeJSON,
		MsgType:   MsgTypeChunk,
		BodyLen:   0,
	}
	var buf bytes.Buffer
	if err := Encode(&buf, &header, []byte{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decodedHeader, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decodedHeader.MsgType != MsgTypeChunk {
		t.Errorf("MsgType mismatch: got %d, want %d", decodedHeader.MsgType, MsgTypeChunk)
	}
	if len(decodedBody) != 0 {
		t.Errorf("Expected empty body, got length %d", len(decodedBody))
	}
}

func TestDecodeLargeBody(t *testing.T) {
	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	header := &Header{
		CodecType: CodecTypeBinary,
		MsgType:   MsgTypeResponse,
		BodyLen:   uint32(len(largeBody)),
	}

	var buf bytes.Buffer
	if err := Encode(&buf, header, largeBody); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decodedBody, largeBody) {
		t.Errorf("Large body mismatch")
	}
}
