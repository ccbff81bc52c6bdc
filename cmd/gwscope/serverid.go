package main

import (
	"path"
	"path/filepath"
	"strings"
)

// ServerID is the path of a server package relative to the workspace root, like examples/test_game
type ServerID string

// Path returns the path to the server
func (sid ServerID) Path() string {
	serverPath := strings.Split(string(sid), "/")
	serverPath = append([]string{env.WorkspaceRoot}, serverPath...)
	return filepath.Join(serverPath...)
}

// Name returns the name of the server
func (sid ServerID) Name() string {
	_, file := path.Split(string(sid))
	return file
}

// BinaryPath returns the path of the server executive
func (sid ServerID) BinaryPath() string {
	return filepath.Join(sid.Path(), sid.Name()+BinaryExtension)
}

type _Env struct {
	WorkspaceRoot string
}

var env _Env
