package config

import (
	"encoding/json"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/gwlog"
)

const (
	_DEFAULT_CONFIG_FILE   = "gwscope.ini"
	_DEFAULT_LISTEN_ADDR   = "0.0.0.0:15011"
	_DEFAULT_LOG_LEVEL     = "debug"
	_DEFAULT_STORAGE_DB    = "gwscope"
	_DEFAULT_STORAGE_DIR   = "_entity_storage"
	_DEFAULT_STORAGE_TYPE  = "filesystem"
	_DEFAULT_LOG_FILE_NAME = "gwscope.log"

	// CompressFormatSnappy is the only supported compress_format
	CompressFormatSnappy = "snappy"
)

var (
	configFilePath = _DEFAULT_CONFIG_FILE
	gwscopeConfig  *GWScopeConfig
	configLock     sync.Mutex
)

// ServerConfig defines fields of the [server] section
type ServerConfig struct {
	ListenAddr   string
	KCPAddr      string
	HTTPAddr     string
	LogFile      string
	LogStderr    bool
	LogLevel     string
	GoMaxProcs   int
	TickInterval time.Duration

	CompressConnection bool
	CompressFormat     string
}

// SessionConfig defines fields of the [session] section
type SessionConfig struct {
	LoadTimeout  time.Duration
	FlushOnEvict bool
}

// PersistenceConfig defines fields of the [persistence] section
type PersistenceConfig struct {
	SaveInterval     time.Duration
	MaxWritesPerTick int
	WritesPerSecond  int // 0 means unlimited
	WriteBurst       int
}

// StorageConfig defines fields of storage config
type StorageConfig struct {
	Type       string // Type of storage (filesystem, memory, mongodb, redis, redis_cluster)
	Directory  string // Directory of filesystem storage (filesystem)
	Url        string // Connection URL (mongodb, redis)
	DB         string // Database name (mongodb, redis)
	StartNodes []string
}

// GWScopeConfig defines the total config file structure
type GWScopeConfig struct {
	Server      ServerConfig
	Session     SessionConfig
	Persistence PersistenceConfig
	Storage     StorageConfig
}

// SetConfigFile sets the config file path (gwscope.ini by default)
func SetConfigFile(f string) {
	configLock.Lock()
	configFilePath = f
	gwscopeConfig = nil
	configLock.Unlock()
}

// GetConfigDir returns the directory of the config file
func GetConfigDir() string {
	dir, _ := path.Split(configFilePath)
	return dir
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total config
func Get() *GWScopeConfig {
	configLock.Lock()
	defer configLock.Unlock()
	if gwscopeConfig == nil {
		gwlog.Infof("Using config file: %s", configFilePath)
		gwscopeConfig = ReadConfig(configFilePath)
	}
	return gwscopeConfig
}

// Reload forces the server to reload the whole config
func Reload() *GWScopeConfig {
	configLock.Lock()
	gwscopeConfig = nil
	configLock.Unlock()

	return Get()
}

// GetServer returns the server config
func GetServer() *ServerConfig {
	return &Get().Server
}

// GetSession returns the session config
func GetSession() *SessionConfig {
	return &Get().Session
}

// GetPersistence returns the persistence config
func GetPersistence() *PersistenceConfig {
	return &Get().Persistence
}

// GetStorage returns the storage config
func GetStorage() *StorageConfig {
	return &Get().Storage
}

// DumpPretty format config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

// ReadConfig parses config from a file path or raw ini bytes
func ReadConfig(source interface{}) *GWScopeConfig {
	var config GWScopeConfig
	iniFile, err := ini.Load(source)
	checkConfigError(err, "")

	readServerConfig(iniFile.Section("server"), &config.Server)
	readSessionConfig(iniFile.Section("session"), &config.Session)
	readPersistenceConfig(iniFile.Section("persistence"), &config.Persistence)
	readStorageConfig(iniFile.Section("storage"), &config.Storage)

	for _, sec := range iniFile.Sections() {
		secName := strings.ToLower(sec.Name())
		switch secName {
		case "default", "server", "session", "persistence", "storage":
		default:
			gwlog.Errorf("unknown section: %s", sec.Name())
		}
	}
	return &config
}

func readServerConfig(sec *ini.Section, sc *ServerConfig) {
	sc.ListenAddr = _DEFAULT_LISTEN_ADDR
	sc.LogFile = _DEFAULT_LOG_FILE_NAME
	sc.LogStderr = true
	sc.LogLevel = _DEFAULT_LOG_LEVEL
	sc.TickInterval = consts.GAME_SERVICE_TICK_INTERVAL

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "listen_addr" {
			sc.ListenAddr = key.MustString(sc.ListenAddr)
		} else if name == "kcp_addr" {
			sc.KCPAddr = key.MustString(sc.KCPAddr)
		} else if name == "http_addr" {
			sc.HTTPAddr = key.MustString(sc.HTTPAddr)
		} else if name == "log_file" {
			sc.LogFile = key.MustString(sc.LogFile)
		} else if name == "log_stderr" {
			sc.LogStderr = key.MustBool(sc.LogStderr)
		} else if name == "log_level" {
			sc.LogLevel = key.MustString(sc.LogLevel)
		} else if name == "gomaxprocs" {
			sc.GoMaxProcs = key.MustInt(sc.GoMaxProcs)
		} else if name == "tick_interval_ms" {
			sc.TickInterval = time.Millisecond * time.Duration(key.MustInt(int(sc.TickInterval/time.Millisecond)))
		} else if name == "compress_connection" {
			sc.CompressConnection = key.MustBool(sc.CompressConnection)
		} else if name == "compress_format" {
			sc.CompressFormat = strings.ToLower(key.MustString(sc.CompressFormat))
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if sc.ListenAddr == "" {
		gwlog.Panicf("listen_addr is not set in server config")
	}
	if sc.TickInterval <= 0 {
		gwlog.Panicf("tick_interval_ms must be positive")
	}
	if sc.CompressConnection {
		if sc.CompressFormat == "" {
			sc.CompressFormat = CompressFormatSnappy
		}
		if sc.CompressFormat != CompressFormatSnappy {
			gwlog.Panicf("server: compress_format %q is not supported, use %s", sc.CompressFormat, CompressFormatSnappy)
		}
	}
}

func readSessionConfig(sec *ini.Section, sc *SessionConfig) {
	sc.LoadTimeout = consts.DEFAULT_LOAD_TIMEOUT
	sc.FlushOnEvict = false

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "load_timeout" {
			sc.LoadTimeout = time.Second * time.Duration(key.MustInt(int(sc.LoadTimeout/time.Second)))
		} else if name == "flush_on_evict" {
			sc.FlushOnEvict = key.MustBool(sc.FlushOnEvict)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readPersistenceConfig(sec *ini.Section, pc *PersistenceConfig) {
	pc.SaveInterval = consts.DEFAULT_SAVE_INTERVAL
	pc.MaxWritesPerTick = consts.DEFAULT_MAX_WRITES_PER_TICK
	pc.WritesPerSecond = consts.DEFAULT_WRITES_PER_SECOND
	pc.WriteBurst = consts.DEFAULT_WRITE_BURST

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "save_interval" {
			pc.SaveInterval = time.Second * time.Duration(key.MustInt(int(pc.SaveInterval/time.Second)))
		} else if name == "max_writes_per_tick" {
			pc.MaxWritesPerTick = key.MustInt(pc.MaxWritesPerTick)
		} else if name == "writes_per_second" {
			pc.WritesPerSecond = key.MustInt(pc.WritesPerSecond)
		} else if name == "write_burst" {
			pc.WriteBurst = key.MustInt(pc.WriteBurst)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if pc.SaveInterval <= 0 {
		gwlog.Panicf("save_interval must be positive")
	}
	if pc.MaxWritesPerTick <= 0 {
		gwlog.Panicf("max_writes_per_tick must be positive")
	}
	if pc.WritesPerSecond < 0 {
		gwlog.Panicf("writes_per_second must not be negative")
	}
	if pc.WritesPerSecond > 0 && pc.WriteBurst <= 0 {
		gwlog.Panicf("write_burst must be positive when writes_per_second is set")
	}
}

func readStorageConfig(sec *ini.Section, config *StorageConfig) {
	// setup default values
	config.Type = _DEFAULT_STORAGE_TYPE
	config.Directory = _DEFAULT_STORAGE_DIR
	config.DB = _DEFAULT_STORAGE_DB
	config.Url = ""
	config.StartNodes = nil

	dbSet := false
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			config.Type = key.MustString(config.Type)
		} else if name == "directory" {
			config.Directory = key.MustString(config.Directory)
		} else if name == "url" {
			config.Url = key.MustString(config.Url)
		} else if name == "db" {
			config.DB = key.MustString(config.DB)
			dbSet = true
		} else if strings.HasPrefix(name, "start_nodes_") {
			config.StartNodes = append(config.StartNodes, key.MustString(""))
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
	sort.Strings(config.StartNodes)

	if config.Type == "redis" && !dbSet {
		config.DB = "0"
	}

	validateStorageConfig(config)
}

func checkConfigError(err error, msg string) {
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		gwlog.Panicf("read config error: %s", msg)
	}
}

func validateStorageConfig(config *StorageConfig) {
	if config.Type == "filesystem" {
		// directory must be set
		if config.Directory == "" {
			gwlog.Panicf("directory is not set in %s storage config", config.Type)
		}
	} else if config.Type == "memory" {
		// nothing to validate
	} else if config.Type == "mongodb" {
		if config.Url == "" {
			gwlog.Panicf("url is not set in %s storage config", config.Type)
		}
		if config.DB == "" {
			gwlog.Panicf("db is not set in %s storage config", config.Type)
		}
	} else if config.Type == "redis" {
		if config.Url == "" {
			gwlog.Panicf("redis host is not set")
		}
		if _, err := strconv.Atoi(config.DB); err != nil {
			gwlog.Panic(errors.Wrap(err, "redis db must be integer"))
		}
	} else if config.Type == "redis_cluster" {
		if len(config.StartNodes) == 0 {
			gwlog.Panicf("must have at least 1 start_nodes for [storage].redis_cluster")
		}
		for _, s := range config.StartNodes {
			if s == "" {
				gwlog.Panicf("start_nodes must not be empty")
			}
		}
	} else {
		gwlog.Panicf("unknown storage type: %s", config.Type)
	}
}
