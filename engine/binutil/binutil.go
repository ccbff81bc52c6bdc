package binutil

import (
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
	"golang.org/x/net/websocket"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupHTTPServer starts the HTTP server for go tool pprof, metrics and websockets
func SetupHTTPServer(httpAddr string, wsHandler func(ws *websocket.Conn)) *http.Server {
	if httpAddr == "" {
		gwlog.Infof("http server not enabled")
		return nil
	}

	gwlog.Infof("http server listening on %s", httpAddr)
	gwlog.Infof("pprof http://%s/debug/pprof/ ... available commands: ", httpAddr)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/heap", httpAddr)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/profile", httpAddr)
	gwlog.Infof("metrics http://%s/metrics", httpAddr)

	mux := http.NewServeMux()
	mux.Handle("/debug/", http.DefaultServeMux) // pprof handlers
	mux.Handle("/metrics", opmon.Handler())
	if wsHandler != nil {
		mux.Handle("/ws", websocket.Handler(wsHandler))
	}

	server := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			gwlog.Errorf("http server on %s quited: %v", httpAddr, err)
		}
	}()
	return server
}

// SetupGWLog setup the log system
func SetupGWLog(component string, logLevel string, logFile string, logStderr bool) {
	gwlog.SetSource(component)
	gwlog.Infof("Set log level to %s", logLevel)
	gwlog.SetLevel(gwlog.ParseLevel(logLevel))

	outputWriters := make([]io.Writer, 0, 2)
	if logFile != "" {
		logFileWriter := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 100,
			MaxAge:     30, //days
			Compress:   true,
		}

		logFileWriter.Rotate() // rotate immediately
		outputWriters = append(outputWriters, logFileWriter)
	}

	if logStderr {
		outputWriters = append(outputWriters, os.Stderr)
	}

	switch len(outputWriters) {
	case 0:
		gwlog.SetWriter(io.Discard)
	case 1:
		gwlog.SetWriter(outputWriters[0])
	default:
		gwlog.SetWriter(io.MultiWriter(outputWriters...))
	}
}
