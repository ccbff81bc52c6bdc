package server

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/xiaonanln/gwscope/engine/binutil"
	"github.com/xiaonanln/gwscope/engine/config"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/storage"
)

var (
	args struct {
		configFile      string
		logLevel        string
		runInDaemonMode bool
	}
)

func parseArgs() {
	flag.StringVar(&args.configFile, "configfile", "", "set config file path")
	flag.StringVar(&args.logLevel, "log", "", "set log level, will override log level in config")
	flag.BoolVar(&args.runInDaemonMode, "d", false, "run in daemon mode")
	flag.Parse()
}

// Start parses the command line, lets setup register types and tables, then runs the server until SIGINT or SIGTERM
func Start(setup func(s *Server)) {
	parseArgs()

	if args.runInDaemonMode {
		daemoncontext := binutil.Daemonize()
		defer daemoncontext.Release()
	}

	if args.configFile != "" {
		config.SetConfigFile(args.configFile)
	}

	cfg := config.Get()
	serverConfig := &cfg.Server
	if serverConfig.GoMaxProcs > 0 {
		gwlog.Infof("SET GOMAXPROCS = %d", serverConfig.GoMaxProcs)
		runtime.GOMAXPROCS(serverConfig.GoMaxProcs)
	}
	logLevel := args.logLevel
	if logLevel == "" {
		logLevel = serverConfig.LogLevel
	}
	binutil.SetupGWLog("server", logLevel, serverConfig.LogFile, serverConfig.LogStderr)
	gwlog.Infof("Read config: \n%s\n", config.DumpPretty(cfg))

	s := NewServer(cfg, storage.ConfigOpener(&cfg.Storage))
	setup(s)
	setupSignals(s)

	if err := s.Run(); err != nil {
		gwlog.Fatalf("server failed: %+v", err)
	}
	gwlog.Sync()
}

func setupSignals(s *Server) {
	gwlog.Infof("Setup signals ...")
	signalChan := make(chan os.Signal, 1)
	signal.Ignore(syscall.SIGPIPE, syscall.SIGHUP)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signalChan
		gwlog.Infof("Signal %s received, terminating server ...", sig)
		s.Terminate()
	}()
}
