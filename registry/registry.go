// Package registry is the application directory: it maps application names to
// where they listen and how to start them, and it owns the on-demand launcher.
package registry

import "errors"

// ErrNotRegistered is returned by Resolve for an unknown application.
var ErrNotRegistered = errors.New("registry: application not registered")

// AppInstance describes one registered application.
type AppInstance struct {
	Addr      string   // socket path the application listens on
	LaunchCmd []string // command to start the application, argv style
	Dir       string   // working directory for the launch command, "" = inherit
}

// Registry is the directory contract. Register entries carry a TTL where the
// backend supports it, so a crashed application does not leave a ghost entry
// with a launch command that points at nothing.
type Registry interface {
	Register(app string, instance AppInstance, ttl int64) error
	Deregister(app string) error
	Resolve(app string) (AppInstance, error)
	Watch(app string) <-chan AppInstance
}
