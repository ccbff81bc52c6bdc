package config

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/gwlog"
)

func init() {
	SetConfigFile("../../gwscope.ini.sample")
}

func TestLoad(t *testing.T) {
	config := Get()
	if config == nil {
		t.FailNow()
	}
	gwlog.Debugf("gwscope config: \n%s", DumpPretty(config))
	assert.Equal(t, "0.0.0.0:15011", config.Server.ListenAddr)
	assert.Equal(t, "0.0.0.0:15012", config.Server.KCPAddr)
	assert.Equal(t, time.Millisecond*10, config.Server.TickInterval)
	assert.Equal(t, false, config.Server.CompressConnection)
	assert.Equal(t, CompressFormatSnappy, config.Server.CompressFormat)
	assert.Equal(t, time.Second*30, config.Session.LoadTimeout)
	assert.Equal(t, false, config.Session.FlushOnEvict)
	assert.Equal(t, time.Second*5, config.Persistence.SaveInterval)
	assert.Equal(t, 100, config.Persistence.MaxWritesPerTick)
	assert.Equal(t, "filesystem", GetStorage().Type)
	assert.Equal(t, "_entity_storage", GetStorage().Directory)
}

func TestReload(t *testing.T) {
	cfg1 := Get()
	cfg2 := Reload()
	assert.T(t, cfg1 != cfg2, "reload should read a new config")
	assert.Equal(t, cfg1.Server, cfg2.Server)
}

func TestDefaults(t *testing.T) {
	cfg := ReadConfig([]byte(""))
	assert.Equal(t, _DEFAULT_LISTEN_ADDR, cfg.Server.ListenAddr)
	assert.Equal(t, consts.DEFAULT_LOAD_TIMEOUT, cfg.Session.LoadTimeout)
	assert.Equal(t, consts.DEFAULT_SAVE_INTERVAL, cfg.Persistence.SaveInterval)
	assert.Equal(t, consts.DEFAULT_MAX_WRITES_PER_TICK, cfg.Persistence.MaxWritesPerTick)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "", cfg.Server.HTTPAddr)
}

func TestReadStorageTypes(t *testing.T) {
	cfg := ReadConfig([]byte(`
[storage]
type = redis
url = redis://127.0.0.1:6379
`))
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "0", cfg.Storage.DB)

	cfg = ReadConfig([]byte(`
[storage]
type = redis_cluster
start_nodes_2 = 127.0.0.1:7001
start_nodes_1 = 127.0.0.1:7000
`))
	assert.Equal(t, []string{"127.0.0.1:7000", "127.0.0.1:7001"}, cfg.Storage.StartNodes)

	cfg = ReadConfig([]byte(`
[session]
flush_on_evict = true
load_timeout = 0
`))
	assert.Equal(t, true, cfg.Session.FlushOnEvict)
	assert.Equal(t, time.Duration(0), cfg.Session.LoadTimeout)
}

func assertPanics(t *testing.T, f func()) {
	defer func() {
		assert.T(t, recover() != nil, "should panic")
	}()
	f()
}

func TestInvalidConfig(t *testing.T) {
	assertPanics(t, func() {
		ReadConfig([]byte("[server]\nunknown_key = 1\n"))
	})
	assertPanics(t, func() {
		ReadConfig([]byte("[storage]\ntype = mysql\n"))
	})
	assertPanics(t, func() {
		ReadConfig([]byte("[storage]\ntype = mongodb\n"))
	})
	assertPanics(t, func() {
		ReadConfig([]byte("[storage]\ntype = redis\nurl = x\ndb = abc\n"))
	})
	assertPanics(t, func() {
		ReadConfig([]byte("[persistence]\nmax_writes_per_tick = 0\n"))
	})
	assertPanics(t, func() {
		ReadConfig([]byte("[server]\ncompress_connection = true\ncompress_format = lz4\n"))
	})
}

func TestCompressConfig(t *testing.T) {
	cfg := ReadConfig([]byte(""))
	assert.Equal(t, false, cfg.Server.CompressConnection)

	cfg = ReadConfig([]byte("[server]\ncompress_connection = true\n"))
	assert.Equal(t, true, cfg.Server.CompressConnection)
	assert.Equal(t, CompressFormatSnappy, cfg.Server.CompressFormat)

	cfg = ReadConfig([]byte("[server]\ncompress_connection = true\ncompress_format = Snappy\n"))
	assert.Equal(t, CompressFormatSnappy, cfg.Server.CompressFormat)
}
