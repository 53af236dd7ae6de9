package registry

import "sync"

// StaticRegistry is an in-memory Registry for single-machine deployments that
// don't run etcd, and for tests. TTLs are accepted but not enforced — entries
// live until Deregister.
type StaticRegistry struct {
	mu       sync.RWMutex
	apps     map[string]AppInstance
	watchers map[string][]chan AppInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		apps:     make(map[string]AppInstance),
		watchers: make(map[string][]chan AppInstance),
	}
}

func (r *StaticRegistry) Register(app string, instance AppInstance, ttl int64) error {
	r.mu.Lock()
	r.apps[app] = instance
	watchers := append([]chan AppInstance(nil), r.watchers[app]...)
	r.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- instance:
		default: // watcher not draining, skip rather than block registration
		}
	}
	return nil
}

func (r *StaticRegistry) Deregister(app string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, app)
	return nil
}

func (r *StaticRegistry) Resolve(app string) (AppInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.apps[app]
	if !ok {
		return AppInstance{}, ErrNotRegistered
	}
	return instance, nil
}

func (r *StaticRegistry) Watch(app string) <-chan AppInstance {
	ch := make(chan AppInstance, 1)
	r.mu.Lock()
	r.watchers[app] = append(r.watchers[app], ch)
	r.mu.Unlock()
	return ch
}
