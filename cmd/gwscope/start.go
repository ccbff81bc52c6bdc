package main

import (
	"os/exec"
	"path/filepath"
	"time"
)

const startTimeout = time.Second * 10

func start(sid ServerID) {
	ss := detectServerStatus()
	if ss.IsRunning() {
		showServerStatus(ss)
		showMsgAndQuit("server is already running")
	}

	binPath := sid.BinaryPath()
	if !isfile(binPath) {
		showMsgAndQuit("%s not found, build the server first", binPath)
	}

	cmdArgs := []string{"-d"}
	configFile := filepath.Join(sid.Path(), "gwscope.ini")
	if isfile(configFile) {
		cmdArgs = append(cmdArgs, "-configfile", configFile)
	}

	showMsg("start %s %v ...", binPath, cmdArgs)
	cmd := exec.Command(binPath, cmdArgs...)
	cmd.Dir = sid.Path()
	err := cmd.Run() // returns once the daemon is forked
	checkErrorOrQuit(err, "start server failed")

	deadline := time.Now().Add(startTimeout)
	for time.Now().Before(deadline) {
		if ss := detectServerStatus(); ss.IsRunning() {
			showServerStatus(ss)
			return
		}
		time.Sleep(time.Millisecond * 100)
	}
	showMsgAndQuit("server %s is not running after %s", sid, startTimeout)
}
