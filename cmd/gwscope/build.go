package main

import (
	"os"
	"os/exec"
)

func build(sid ServerID) {
	showMsg("building server %s ...", sid)

	serverPath := sid.Path()
	showMsg("server directory is %s ...", serverPath)
	if !isdir(serverPath) {
		showMsgAndQuit("wrong server id: %s, using '\\' instead of '/'?", sid)
	}

	showMsg("go build %s ...", sid)
	buildDirectory(serverPath)
}

func buildDirectory(dir string) {
	cmd := exec.Command("go", "build", ".")
	cmd.Dir = dir
	cmd.Stderr = os.Stderr
	cmd.Stdout = os.Stdout
	cmd.Stdin = os.Stdin
	err := cmd.Run()
	checkErrorOrQuit(err, "build failed")
}
