package server

import "sync"

// Handler is a unary method: it gets the caller's positional and keyword
// arguments verbatim and returns one result or an error. Argument shape
// validation is the handler's own responsibility.
type Handler func(args []any, kwargs map[string]any) (any, error)

// StreamHandler is a streaming method: it pushes results through emit and
// returns nil to end the stream or an error to abort it. An emit failure
// means the consumer went away; the handler should return promptly.
type StreamHandler func(args []any, kwargs map[string]any, emit func(value any) error) error

// Method is one registry entry; exactly one of Unary/Stream is set.
type Method struct {
	Unary  Handler
	Stream StreamHandler
}

// MethodRegistry maps method names to handlers. Registration normally
// happens once at startup before the server accepts connections, but lookups
// may run concurrently with a late re-registration, so access is guarded.
// The last registration under a name wins.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]Method)}
}

// Register binds a unary handler to name, replacing any previous binding.
func (r *MethodRegistry) Register(name string, h Handler) {
	if name == "" || h == nil {
		return
	}
	r.mu.Lock()
	r.methods[name] = Method{Unary: h}
	r.mu.Unlock()
}

// RegisterStream binds a streaming handler to name, replacing any previous
// binding.
func (r *MethodRegistry) RegisterStream(name string, h StreamHandler) {
	if name == "" || h == nil {
		return
	}
	r.mu.Lock()
	r.methods[name] = Method{Stream: h}
	r.mu.Unlock()
}

// Lookup returns the binding for name.
func (r *MethodRegistry) Lookup(name string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}
