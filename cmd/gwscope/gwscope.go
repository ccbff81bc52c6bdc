package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
)

var rootArg string

func parseArgs() {
	flag.StringVar(&rootArg, "root", "", "set workspace root directory, current directory by default")
	flag.Usage = func() {
		showMsg("usage: gwscope [-root dir] build|start|stop|kill|status [server]")
		flag.PrintDefaults()
	}
	flag.Parse()
}

func main() {
	parseArgs()
	args := flag.Args()
	showMsg("arguments: %s", strings.Join(args, " "))

	detectWorkspaceRoot()

	if len(args) == 0 {
		showMsg("no command to execute")
		flag.Usage()
		os.Exit(1)
	}

	cmd := args[0]
	if cmd == "status" {
		status()
		return
	}

	if len(args) != 2 {
		showMsgAndQuit("should specify one server id")
	}
	sid := ServerID(args[1])

	switch cmd {
	case "build":
		build(sid)
	case "start":
		start(sid)
	case "stop":
		stop(sid)
	case "kill":
		kill(sid)
	default:
		showMsgAndQuit("unknown command: %s", cmd)
	}
}

func detectWorkspaceRoot() {
	root := rootArg
	if root == "" {
		var err error
		root, err = os.Getwd()
		checkErrorOrQuit(err, "get current directory failed")
	}

	root, err := filepath.Abs(root)
	checkErrorOrQuit(err, "bad workspace root")
	if !isfile(filepath.Join(root, "go.mod")) {
		showMsgAndQuit("%s is not a go module root", root)
	}
	env.WorkspaceRoot = root
	showMsg("workspace root: %s", env.WorkspaceRoot)
}
