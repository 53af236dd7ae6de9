package server

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"peerlink/codec"
	"peerlink/message"
	"peerlink/transport"
)

func startServer(t *testing.T, app string, bind func(*MethodRegistry)) *Server {
	t.Helper()
	svr := NewServer(app)
	bind(svr.Methods())
	go svr.Serve()
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	time.Sleep(100 * time.Millisecond)
	return svr
}

func dial(t *testing.T, app string) *transport.Channel {
	t.Helper()
	ch, err := transport.Connect(app, codec.CodecTypeJSON, time.Second)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestUnaryDispatch(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())

	startServer(t, "calc", func(m *MethodRegistry) {
		m.Register("add", func(args []any, kwargs map[string]any) (any, error) {
			return args[0].(float64) + args[1].(float64), nil
		})
	})

	ch := dial(t, "calc")
	if err := ch.Send(&message.Request{Method: "add", Args: []any{1.0, 2.0}}); err != nil {
		t.Fatal(err)
	}

	resp, err := ch.RecvResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != message.StatusOK || resp.Data != 3.0 {
		t.Fatalf("expect ok/3, got %s/%v", resp.Status, resp.Data)
	}
}

func TestUnaryHandlerError(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())

	startServer(t, "calc", func(m *MethodRegistry) {
		m.Register("fail", func(args []any, kwargs map[string]any) (any, error) {
			return nil, errors.New("boom")
		})
	})

	ch := dial(t, "calc")
	ch.Send(&message.Request{Method: "fail"})

	resp, err := ch.RecvResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != message.StatusError || resp.Msg != "boom" {
		t.Fatalf("expect error/boom, got %s/%s", resp.Status, resp.Msg)
	}
}

func TestUnknownMethod(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())

	startServer(t, "calc", func(m *MethodRegistry) {})

	ch := dial(t, "calc")
	ch.Send(&message.Request{Method: "nope"})

	resp, err := ch.RecvResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != message.StatusError {
		t.Fatalf("expect error for unknown method, got %s", resp.Status)
	}
}

func TestStreamSession(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())

	startServer(t, "counter", func(m *MethodRegistry) {
		m.RegisterStream("count", func(args []any, kwargs map[string]any, emit func(any) error) error {
			n := int(args[0].(float64))
			for i := 0; i < n; i++ {
				if err := emit(float64(i)); err != nil {
					return err
				}
			}
			return nil
		})
	})

	ch := dial(t, "counter")
	ch.Send(&message.Request{Method: "count", Args: []any{3.0}})

	header, err := ch.RecvResponse()
	if err != nil {
		t.Fatal(err)
	}
	if header.Status != message.StatusStreamStart {
		t.Fatalf("expect stream_start, got %s", header.Status)
	}
	if header.TaskID == "" {
		t.Fatal("expect a task id on the session header")
	}

	for i := 0; i < 3; i++ {
		chunk, err := ch.RecvChunk()
		if err != nil {
			t.Fatal(err)
		}
		if chunk.Status != message.StatusData || chunk.Value != float64(i) {
			t.Fatalf("chunk %d: got %s/%v", i, chunk.Status, chunk.Value)
		}
	}

	end, err := ch.RecvChunk()
	if err != nil {
		t.Fatal(err)
	}
	if end.Status != message.StatusEnd {
		t.Fatalf("expect end, got %s", end.Status)
	}
}

func TestStreamHandlerError(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())

	startServer(t, "counter", func(m *MethodRegistry) {
		m.RegisterStream("halfway", func(args []any, kwargs map[string]any, emit func(any) error) error {
			emit("one")
			return fmt.Errorf("lost it")
		})
	})

	ch := dial(t, "counter")
	ch.Send(&message.Request{Method: "halfway"})

	if header, _ := ch.RecvResponse(); header.Status != message.StatusStreamStart {
		t.Fatalf("expect stream_start, got %s", header.Status)
	}
	if chunk, _ := ch.RecvChunk(); chunk.Status != message.StatusData {
		t.Fatalf("expect data chunk, got %s", chunk.Status)
	}

	errChunk, err := ch.RecvChunk()
	if err != nil {
		t.Fatal(err)
	}
	if errChunk.Status != message.StatusError || errChunk.Msg != "lost it" {
		t.Fatalf("expect error chunk, got %s/%s", errChunk.Status, errChunk.Msg)
	}
}

func TestMethodRegistryLastWins(t *testing.T) {
	m := NewMethodRegistry()
	m.Register("f", func(args []any, kwargs map[string]any) (any, error) { return "old", nil })
	m.Register("f", func(args []any, kwargs map[string]any) (any, error) { return "new", nil })

	method, ok := m.Lookup("f")
	if !ok {
		t.Fatal("lookup failed")
	}
	data, _ := method.Unary(nil, nil)
	if data != "new" {
		t.Fatalf("expect last registration to win, got %v", data)
	}
}

func TestMethodRegistryEmptyName(t *testing.T) {
	m := NewMethodRegistry()
	m.Register("", func(args []any, kwargs map[string]any) (any, error) { return nil, nil })
	if _, ok := m.Lookup(""); ok {
		t.Fatal("empty name must not register")
	}
}

func TestGracefulShutdown(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())

	svr := startServer(t, "slowpoke", func(m *MethodRegistry) {
		m.Register("nap", func(args []any, kwargs map[string]any) (any, error) {
			time.Sleep(150 * time.Millisecond)
			return "rested", nil
		})
	})

	ch := dial(t, "slowpoke")
	ch.Send(&message.Request{Method: "nap"})

	// Give the request a moment to land, then shut down; the in-flight
	// call must still complete.
	time.Sleep(50 * time.Millisecond)
	if err := svr.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	resp, err := ch.RecvResponse()
	if err != nil {
		t.Fatalf("in-flight request dropped during shutdown: %v", err)
	}
	if resp.Data != "rested" {
		t.Fatalf("unexpected reply: %v", resp.Data)
	}
}
