package process

import (
	"syscall"

	psutil_process "github.com/shirou/gopsutil/process"
)

// Process is a running process of the machine
type Process interface {
	Pid() int32
	Executable() string
	Path() (string, error)
	CmdlineSlice() ([]string, error)
	Signal(sig syscall.Signal) error
}

type process struct {
	*psutil_process.Process
}

func (p process) Pid() int32 {
	return p.Process.Pid
}

func (p process) Executable() string {
	name, _ := p.Process.Name()
	return name
}

func (p process) Path() (string, error) {
	return p.Process.Exe()
}

// Processes lists all processes
func Processes() ([]Process, error) {
	var procs []Process

	ps, err := psutil_process.Processes()
	if err != nil {
		return nil, err
	}

	for _, _p := range ps {
		procs = append(procs, process{_p})
	}
	return procs, nil
}

// IsRunning returns if the process of pid is running
func IsRunning(pid int32) (bool, error) {
	return psutil_process.PidExists(pid)
}
