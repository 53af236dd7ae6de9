package registry

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("peerlink")

// Launcher starts a named application on demand. Launch returns nil when the
// process was started; whether it comes up in time is the caller's problem
// (the dispatch core waits a grace period and retries its connect once).
type Launcher interface {
	Launch(app string) error
}

// RegistryLauncher launches applications using the command line recorded in
// the directory.
type RegistryLauncher struct {
	Registry Registry
	Quiet    bool // suppress the stderr notice
}

func NewLauncher(reg Registry) *RegistryLauncher {
	return &RegistryLauncher{Registry: reg}
}

// Launch resolves the application's launch command and starts it detached.
// An unregistered application or an entry without a launch command is a
// terminal failure — there is nothing further to try.
func (l *RegistryLauncher) Launch(app string) error {
	instance, err := l.Registry.Resolve(app)
	if err != nil {
		return fmt.Errorf("launch %s: %w", app, err)
	}
	if len(instance.LaunchCmd) == 0 {
		return fmt.Errorf("launch %s: no launch command registered", app)
	}

	if !l.Quiet {
		os.Stderr.WriteString(color.YellowString("peerlink ▶ launching %s...", app) + "\r\n")
	}
	log.Infof("launching %s: %v", app, instance.LaunchCmd)

	cmd := exec.Command(instance.LaunchCmd[0], instance.LaunchCmd[1:]...)
	cmd.Dir = instance.Dir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", app, err)
	}
	// Detach: reap the child in the background so it never zombies
	go cmd.Wait()
	return nil
}
