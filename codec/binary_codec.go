package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"peerlink/message"
)

// BinaryCodec hand-encodes the fixed fields of a record with length prefixes
// and nests the dynamic fields (args, kwargs, data, value) as JSON blobs.
// The frame header's MsgType tells the receiver whether the body is a Request
// or a Response, so no kind tag is needed here.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.Request:
		return encodeRequest(msg)
	case *message.Response:
		return encodeResponse(msg)
	default:
		return nil, errors.New("BinaryCodec: v must be *message.Request or *message.Response")
	}
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	switch msg := v.(type) {
	case *message.Request:
		return decodeRequest(data, msg)
	case *message.Response:
		return decodeResponse(data, msg)
	default:
		return errors.New("BinaryCodec: v must be *message.Request or *message.Response")
	}
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// Request layout:
//
//	[2B method len][method][4B args len][args JSON][4B kwargs len][kwargs JSON]
func encodeRequest(msg *message.Request) ([]byte, error) {
	args, err := json.Marshal(msg.Args)
	if err != nil {
		return nil, err
	}
	kwargs, err := json.Marshal(msg.Kwargs)
	if err != nil {
		return nil, err
	}

	total := 2 + len(msg.Method) + 4 + len(args) + 4 + len(kwargs)
	buf := make([]byte, total)

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Method)))
	offset += 2
	copy(buf[offset:], msg.Method)
	offset += len(msg.Method)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(args)))
	offset += 4
	copy(buf[offset:], args)
	offset += len(args)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(kwargs)))
	offset += 4
	copy(buf[offset:], kwargs)

	return buf, nil
}

func decodeRequest(data []byte, msg *message.Request) error {
	offset := 0

	methodLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	msg.Method = string(data[offset : offset+int(methodLen)])
	offset += int(methodLen)

	argsLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if err := json.Unmarshal(data[offset:offset+int(argsLen)], &msg.Args); err != nil {
		return err
	}
	offset += int(argsLen)

	kwargsLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	return json.Unmarshal(data[offset:offset+int(kwargsLen)], &msg.Kwargs)
}

// Response layout:
//
//	[1B status len][status][2B msg len][msg][2B task id len][task id]
//	[4B data len][data JSON][4B value len][value JSON]
//
// A zero length means the field is absent; this keeps nil Data distinguishable
// from an explicit JSON null.
func encodeResponse(msg *message.Response) ([]byte, error) {
	var data, value []byte
	var err error
	if msg.Data != nil {
		if data, err = json.Marshal(msg.Data); err != nil {
			return nil, err
		}
	}
	if msg.Value != nil {
		if value, err = json.Marshal(msg.Value); err != nil {
			return nil, err
		}
	}

	total := 1 + len(msg.Status) + 2 + len(msg.Msg) + 2 + len(msg.TaskID) + 4 + len(data) + 4 + len(value)
	buf := make([]byte, total)

	offset := 0
	buf[offset] = byte(len(msg.Status))
	offset++
	copy(buf[offset:], msg.Status)
	offset += len(msg.Status)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Msg)))
	offset += 2
	copy(buf[offset:], msg.Msg)
	offset += len(msg.Msg)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.TaskID)))
	offset += 2
	copy(buf[offset:], msg.TaskID)
	offset += len(msg.TaskID)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(data)))
	offset += 4
	copy(buf[offset:], data)
	offset += len(data)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(value)))
	offset += 4
	copy(buf[offset:], value)

	return buf, nil
}

func decodeResponse(data []byte, msg *message.Response) error {
	offset := 0

	statusLen := int(data[offset])
	offset++
	msg.Status = string(data[offset : offset+statusLen])
	offset += statusLen

	msgLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	msg.Msg = string(data[offset : offset+int(msgLen)])
	offset += int(msgLen)

	taskLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	msg.TaskID = string(data[offset : offset+int(taskLen)])
	offset += int(taskLen)

	dataLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if dataLen > 0 {
		if err := json.Unmarshal(data[offset:offset+int(dataLen)], &msg.Data); err != nil {
			return err
		}
	}
	offset += int(dataLen)

	valueLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if valueLen > 0 {
		return json.Unmarshal(data[offset:offset+int(valueLen)], &msg.Value)
	}
	return nil
}
