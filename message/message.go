// Package message defines the wire records exchanged between peerlink applications.
//
// A Request travels caller → target; a Response travels back. The same Response
// record doubles as a stream chunk: the Status field says which role it plays.
// Records are serialized by the codec layer and wrapped in a protocol frame for
// transmission over the unix-domain socket.
package message

// Status values carried in Response.Status.
//
//   - Unary replies use StatusOK or StatusError.
//   - A streaming session opens with StatusStreamStart and then emits chunks
//     with StatusData, terminated by exactly one StatusEnd or StatusError.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusStreamStart = "stream_start"
	StatusData        = "data"
	StatusEnd         = "end"
)

// Request carries one remote invocation.
//
// It is constructed fresh per call, sent over exactly one channel, and never
// reused. Args and Kwargs are forwarded verbatim to the remote handler; the
// dispatch layer does not inspect them.
type Request struct {
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// Response carries either a unary reply, a stream session header, or a stream
// chunk, distinguished by Status:
//
//   - StatusOK:          Data holds the handler's return value.
//   - StatusError:       Msg holds the remote error text (unary reply or chunk).
//   - StatusStreamStart: TaskID identifies the session just opened.
//   - StatusData:        Value holds one chunk of the stream.
//   - StatusEnd:         the stream finished normally; no payload.
//
// Data is unary-only and Value is chunk-only so the two payloads can never be
// confused when classifying a record of unexpected status.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Value  any    `json:"value,omitempty"`
	Msg    string `json:"msg,omitempty"`
	TaskID string `json:"task_id,omitempty"`
}

// Ok builds a unary success reply.
func Ok(data any) *Response {
	return &Response{Status: StatusOK, Data: data}
}

// Error builds an error reply carrying msg verbatim.
func Error(msg string) *Response {
	return &Response{Status: StatusError, Msg: msg}
}

// StreamStart builds a session header for the given task id.
func StreamStart(taskID string) *Response {
	return &Response{Status: StatusStreamStart, TaskID: taskID}
}

// Chunk builds a data chunk.
func Chunk(value any) *Response {
	return &Response{Status: StatusData, Value: value}
}

// End builds the terminal chunk of a successful stream.
func End() *Response {
	return &Response{Status: StatusEnd}
}
