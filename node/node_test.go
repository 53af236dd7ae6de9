package node

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"peerlink/client"
	"peerlink/middleware"
	"peerlink/registry"
	"peerlink/transport"
)

func startNode(t *testing.T, name string, reg registry.Registry, bind func(*Node)) *Node {
	t.Helper()
	n, err := New(name, Options{Registry: reg})
	if err != nil {
		t.Fatalf("New(%s) failed: %v", name, err)
	}
	if bind != nil {
		bind(n)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start(%s) failed: %v", name, err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

// Two in-process applications calling each other end to end.
func TestTwoNodesUnary(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	startNode(t, "mathsvc", reg, func(n *Node) {
		n.Expose("add", func(args []any, kwargs map[string]any) (any, error) {
			return args[0].(float64) + args[1].(float64), nil
		})
	})
	caller := startNode(t, "frontend", reg, nil)

	result, err := caller.Peer("mathsvc").Call("add", 2.0, 3.0)
	if err != nil {
		t.Fatalf("cross-node call failed: %v", err)
	}
	if result != 5.0 {
		t.Fatalf("expect 5, got %v", result)
	}
}

func TestTwoNodesStream(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	startNode(t, "feedsvc", reg, func(n *Node) {
		n.ExposeStream("naturals", func(args []any, kwargs map[string]any, emit func(any) error) error {
			limit := int(args[0].(float64))
			for i := 1; i <= limit; i++ {
				if err := emit(float64(i)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	caller := startNode(t, "consumer", reg, nil)

	session, err := caller.Peer("feedsvc").Stream("naturals", 4.0)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if session.TaskID() == "" {
		t.Fatal("expect a task id")
	}

	values, err := session.Collect()
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 4 || values[3] != 4.0 {
		t.Fatalf("unexpected stream values: %v", values)
	}
	if _, err := session.Next(); !errors.Is(err, client.ErrSessionClosed) {
		t.Fatalf("expect ErrSessionClosed after Collect, got %v", err)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	startNode(t, "highlander", reg, nil)

	_, err := New("highlander", Options{Registry: reg})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expect ErrAlreadyRunning, got %v", err)
	}
}

func TestNodeRegistersLaunchInfo(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	startNode(t, "svc", reg, nil)

	inst, err := reg.Resolve("svc")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Addr != transport.SocketPath("svc") {
		t.Fatalf("registered addr mismatch: %s", inst.Addr)
	}
	if len(inst.LaunchCmd) == 0 {
		t.Fatal("expect a default launch command")
	}
}

func TestNodeMiddleware(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	startNode(t, "guarded", reg, func(n *Node) {
		n.Use(middleware.RecoveryMiddleware())
		n.Expose("explode", func(args []any, kwargs map[string]any) (any, error) {
			panic("kaboom")
		})
	})
	caller := startNode(t, "prober", reg, nil)

	_, err := caller.Call("guarded", "explode", nil, nil)
	var remote *client.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expect the panic surfaced as RemoteError, got %v", err)
	}
}

func TestNodeEmptyName(t *testing.T) {
	if _, err := New("", Options{}); err == nil {
		t.Fatal("expect error for empty application name")
	}
}

func TestManyNodesConcurrentCalls(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	const n = 4
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("svc-%d", i)
		startNode(t, name, reg, func(nd *Node) {
			nd.Expose("whoami", func(args []any, kwargs map[string]any) (any, error) {
				return nd.Name(), nil
			})
		})
	}
	caller := startNode(t, "fanout", reg, nil)

	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			name := fmt.Sprintf("svc-%d", i)
			result, err := caller.Call(name, "whoami", nil, nil)
			if err != nil {
				done <- err
				return
			}
			if result != name {
				done <- fmt.Errorf("asked %s, answered %v", name, result)
				return
			}
			done <- nil
		}(i)
	}
	for i := 0; i < n; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Error(err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent calls timed out")
		}
	}
}

func TestStreamConsumerAbandons(t *testing.T) {
	t.Setenv(transport.SockDirEnv, t.TempDir())
	reg := registry.NewStaticRegistry()

	startNode(t, "pump", reg, func(n *Node) {
		n.ExposeStream("forever", func(args []any, kwargs map[string]any, emit func(any) error) error {
			for i := 0; ; i++ {
				if err := emit(float64(i)); err != nil {
					return err // consumer went away
				}
			}
		})
	})
	caller := startNode(t, "dipper", reg, nil)

	session, err := caller.Peer("pump").Stream("forever")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.Next(); err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if err := session.Close(); err != nil {
		t.Fatal(err)
	}
}
