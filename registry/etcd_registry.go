// etcd-backed implementation of the Registry interface.
//
// etcd acts as the machine-wide phonebook of launchable applications:
//
//	Key:   /peerlink/apps/{AppName}
//	Value: JSON-encoded AppInstance
//
// Registration uses TTL-based leases: if the application crashes, the lease
// expires and the entry is removed automatically, so nobody tries to launch
// from a stale command line.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdPrefix = "/peerlink/apps/"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Register stores the instance under a TTL lease and starts background
// KeepAlive renewal. The lease id stays a local variable: sharing one
// EtcdRegistry between applications must not race on it.
func (r *EtcdRegistry) Register(app string, instance AppInstance, ttl int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, etcdPrefix+app, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes the application's entry. Called during graceful
// shutdown before the socket listener closes.
func (r *EtcdRegistry) Deregister(app string) error {
	_, err := r.client.Delete(context.TODO(), etcdPrefix+app)
	return err
}

// Resolve returns the registered instance for app.
func (r *EtcdRegistry) Resolve(app string) (AppInstance, error) {
	resp, err := r.client.Get(context.TODO(), etcdPrefix+app)
	if err != nil {
		return AppInstance{}, err
	}
	if len(resp.Kvs) == 0 {
		return AppInstance{}, ErrNotRegistered
	}

	var instance AppInstance
	if err := json.Unmarshal(resp.Kvs[0].Value, &instance); err != nil {
		return AppInstance{}, err
	}
	return instance, nil
}

// Watch emits the instance whenever the application's entry changes
// (registration, update, or lease expiry). Uses etcd's server-push watch,
// which beats polling.
func (r *EtcdRegistry) Watch(app string) <-chan AppInstance {
	ch := make(chan AppInstance, 1)

	go func() {
		watchChan := r.client.Watch(context.TODO(), etcdPrefix+app)
		for range watchChan {
			// On any change, re-fetch the entry; simpler than parsing
			// individual watch events
			instance, err := r.Resolve(app)
			if err != nil {
				continue
			}
			ch <- instance
		}
	}()

	return ch
}
