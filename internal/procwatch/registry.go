// Package procwatch launches worker windows as tagged detached processes
// and rediscovers them later by scanning live process environments. The
// tag survives fork/exec chains (thin launchers spawning the real
// application), which spawned PIDs do not.
package procwatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"
)

// TagVar is the environment variable carrying the cycle correlation tag.
// Children and arbitrarily deep descendants inherit it.
const TagVar = "VRAMLEAK_CYCLE_TAG"

// NewTag returns a correlation tag unique across runs and cycles.
func NewTag() string {
	return "cycle-" + xid.New().String()
}

type Registry struct {
	Inspector Inspector
	Log       *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{Inspector: SystemInspector{}, Log: logger}
}

// Spawn starts command as a detached background process with TagVar=tag
// appended to its environment. It never waits for the worker to become
// ready; pacing is the caller's concern.
func (r *Registry) Spawn(command string, args []string, tag string, extraEnv []string) error {
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Env = append(cmd.Env, TagVar+"="+tag)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning %s: %w", command, err)
	}
	// Reap in the background so exited workers don't linger as zombies
	// and skew convergence counting.
	go cmd.Wait()
	if r.Log != nil {
		r.Log.Debug("spawned worker", "command", command, "pid", cmd.Process.Pid, "tag", tag)
	}
	return nil
}

// FindByTag scans all live processes and returns the PIDs whose
// environment contains the exact TagVar=tag entry. The scan is fresh on
// every call; PIDs are reused by the OS, so results are never cached.
// Processes that disappear or refuse environment reads mid-scan are
// skipped.
func (r *Registry) FindByTag(tag string) []int32 {
	pids, err := r.Inspector.Pids()
	if err != nil {
		return nil
	}
	want := TagVar + "=" + tag
	var found []int32
	for _, pid := range pids {
		env, err := r.Inspector.Environ(pid)
		if err != nil {
			continue
		}
		for _, entry := range env {
			if entry == want {
				found = append(found, pid)
				break
			}
		}
	}
	return found
}

// Terminate sends SIGTERM to every PID, waits the grace period, then
// SIGKILLs survivors. Signal failures are expected races with processes
// exiting on their own and are ignored. Only context cancellation is
// reported.
func (r *Registry) Terminate(ctx context.Context, pids []int32, grace time.Duration) error {
	if len(pids) == 0 {
		return nil
	}
	for _, pid := range pids {
		if err := r.Inspector.Terminate(pid); err != nil && r.Log != nil {
			r.Log.Debug("terminate signal skipped", "pid", pid, "err", err)
		}
	}
	select {
	case <-time.After(grace):
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, pid := range pids {
		if !r.Inspector.Alive(pid) {
			continue
		}
		if err := r.Inspector.Kill(pid); err != nil && r.Log != nil {
			r.Log.Debug("kill signal skipped", "pid", pid, "err", err)
		}
	}
	return nil
}

// CountByBasename returns how many live processes have exactly the given
// executable name. Used as a coarse window count during convergence
// waits; it deliberately includes workers from other tags that have not
// finished exiting yet.
func (r *Registry) CountByBasename(name string) (int, error) {
	pids, err := r.Inspector.Pids()
	if err != nil {
		return 0, fmt.Errorf("listing processes: %w", err)
	}
	count := 0
	for _, pid := range pids {
		n, err := r.Inspector.Name(pid)
		if err != nil {
			continue
		}
		if n == name {
			count++
		}
	}
	return count, nil
}
