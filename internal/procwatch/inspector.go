package procwatch

import (
	"github.com/shirou/gopsutil/process"
)

// Inspector is the process-table capability the registry runs against.
// Implementations fail softly: a PID that vanishes between enumeration and
// read returns an error from the per-PID methods and is skipped by callers.
type Inspector interface {
	Pids() ([]int32, error)
	Environ(pid int32) ([]string, error)
	Name(pid int32) (string, error)
	Alive(pid int32) bool
	Terminate(pid int32) error
	Kill(pid int32) error
}

// SystemInspector reads the live process table of the host.
type SystemInspector struct{}

func (SystemInspector) Pids() ([]int32, error) {
	return process.Pids()
}

func (SystemInspector) Environ(pid int32) ([]string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	return p.Environ()
}

func (SystemInspector) Name(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}

func (SystemInspector) Alive(pid int32) bool {
	ok, err := process.PidExists(pid)
	return err == nil && ok
}

func (SystemInspector) Terminate(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Terminate()
}

func (SystemInspector) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
