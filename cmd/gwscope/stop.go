package main

import (
	"syscall"
	"time"

	"github.com/xiaonanln/gwscope/cmd/gwscope/process"
)

func stop(sid ServerID) {
	stopWithSignal(sid, StopSignal)
}

func kill(sid ServerID) {
	stopWithSignal(sid, syscall.SIGKILL)
}

func stopWithSignal(sid ServerID, signal syscall.Signal) {
	ss := detectServerStatus()
	showServerStatus(ss)
	if !ss.IsRunning() {
		// server is not running
		showMsgAndQuit("no server is running currently")
	}

	if ss.ServerID != sid {
		showMsgAndQuit("another server is running: %s", ss.ServerID)
	}

	for _, proc := range ss.Procs {
		stopProc(proc, signal)
	}
}

func stopProc(proc process.Process, signal syscall.Signal) {
	showMsg("stop process %s pid=%d", proc.Executable(), proc.Pid())
	err := proc.Signal(signal)
	checkErrorOrQuit(err, "stop process failed")

	for {
		time.Sleep(time.Millisecond * 100)
		if !checkProcessRunning(proc) {
			break
		}
	}
}

func checkProcessRunning(proc process.Process) bool {
	running, err := process.IsRunning(proc.Pid())
	checkErrorOrQuit(err, "check process failed")
	return running
}
