package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xiaonanln/gwscope/cmd/gwscope/process"
)

// ServerStatus represents the status of servers running in the workspace
type ServerStatus struct {
	Procs    []process.Process
	ServerID ServerID
}

// IsRunning returns if a server is running
func (ss *ServerStatus) IsRunning() bool {
	return len(ss.Procs) > 0
}

func detectServerStatus() *ServerStatus {
	ss := &ServerStatus{}
	procs, err := process.Processes()
	checkErrorOrQuit(err, "list processes failed")
	for _, proc := range procs {
		path, err := proc.Path()
		if err != nil || !isexists(path) {
			continue
		}

		relpath, err := filepath.Rel(env.WorkspaceRoot, path)
		if err != nil || strings.HasPrefix(relpath, "..") {
			continue
		}

		dir, file := filepath.Split(relpath)
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		serverid := ServerID(strings.Join(strings.Split(dir, string(filepath.Separator)), "/"))
		if strings.HasPrefix(string(serverid), "cmd/") || file != serverid.Name()+BinaryExtension {
			// this is a tool, not a server
			continue
		}

		ss.Procs = append(ss.Procs, proc)
		if ss.ServerID == "" {
			ss.ServerID = serverid
		}
	}

	return ss
}

func status() {
	ss := detectServerStatus()
	showServerStatus(ss)
}

func showServerStatus(ss *ServerStatus) {
	showMsg("%d server processes (%s) running", len(ss.Procs), ss.ServerID)

	for _, proc := range ss.Procs {
		cmdlineSlice, err := proc.CmdlineSlice()
		var cmdline string
		if err == nil {
			cmdline = strings.Join(cmdlineSlice, " ")
		} else {
			cmdline = fmt.Sprintf("get cmdline failed: %v", err)
		}

		showMsg("\t%-10d%-16s%s", proc.Pid(), proc.Executable(), cmdline)
	}
}
