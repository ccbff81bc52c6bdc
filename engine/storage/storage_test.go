package storage

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/config"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/post"
	"github.com/xiaonanln/gwscope/engine/storage/backend/memory"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
)

func newTestService(t *testing.T, writesPerSecond int) (*Service, *entitystoragememory.Storage, *post.Queue) {
	ms := entitystoragememory.Open()
	s := NewService(func() (storagecommon.EntityStorage, error) {
		return ms, nil
	}, writesPerSecond, 1)
	q := post.NewQueue()
	s.SetPostFunc(q.Post)
	assert.Equal(t, nil, s.Start())
	return s, ms, q
}

// waitFor ticks the post queue until cond holds
func waitFor(t *testing.T, q *post.Queue, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout")
		}
		time.Sleep(time.Millisecond)
		q.Tick()
	}
}

func TestSaveThenLoad(t *testing.T) {
	s, ms, q := newTestService(t, 0)
	defer s.Shutdown()

	key := entity.SingleKey("Inventory", "U1")
	var saveErr error
	saved := false
	s.Save(key, entity.Fields{"gold": int64(100)}, func(err error) {
		saveErr, saved = err, true
	})
	var loaded entity.Fields
	done := false
	s.Load(key, func(data entity.Fields, err error) {
		assert.Equal(t, nil, err)
		assert.T(t, saved, "save callback should run before load callback")
		loaded, done = data, true
	})
	waitFor(t, q, func() bool { return done })

	assert.Equal(t, nil, saveErr)
	assert.Equal(t, int64(100), loaded.GetInt("gold"))
	assert.Equal(t, 1, len(ms.Writes()))
}

func TestLoadNotFound(t *testing.T) {
	s, _, q := newTestService(t, 0)
	defer s.Shutdown()

	done := false
	s.Load(entity.SingleKey("Inventory", "nobody"), func(data entity.Fields, err error) {
		assert.Equal(t, nil, err)
		assert.T(t, data == nil)
		done = true
	})
	waitFor(t, q, func() bool { return done })
}

func TestLoadError(t *testing.T) {
	s, ms, q := newTestService(t, 0)
	defer s.Shutdown()

	boom := errors.New("store unavailable")
	ms.FailReads(boom)
	var loadErr error
	done := false
	s.Load(entity.SingleKey("Inventory", "U1"), func(data entity.Fields, err error) {
		loadErr, done = err, true
	})
	waitFor(t, q, func() bool { return done })
	assert.Equal(t, boom, loadErr)
}

func TestListAndExists(t *testing.T) {
	s, ms, q := newTestService(t, 0)
	defer s.Shutdown()

	ms.Put(entity.MultiKey("Pet", "U1", "p1"), entity.Fields{})
	ms.Put(entity.MultiKey("Pet", "U1", "p2"), entity.Fields{})

	var instances []string
	var exists bool
	n := 0
	s.List("Pet", "U1", func(res []string, err error) {
		assert.Equal(t, nil, err)
		instances = res
		n++
	})
	s.Exists(entity.MultiKey("Pet", "U1", "p2"), func(res bool, err error) {
		assert.Equal(t, nil, err)
		exists = res
		n++
	})
	waitFor(t, q, func() bool { return n == 2 })
	assert.Equal(t, []string{"p1", "p2"}, instances)
	assert.T(t, exists)
}

func TestWriteLimiter(t *testing.T) {
	s, ms, q := newTestService(t, 50)
	defer s.Shutdown()

	start := time.Now()
	n := 0
	for i := 0; i < 6; i++ {
		s.Save(entity.MultiKey("Pet", "U1", string(rune('a'+i))), entity.Fields{}, func(err error) {
			n++
		})
	}
	waitFor(t, q, func() bool { return n == 6 })
	// burst of 1, then 5 writes at 50/s
	assert.T(t, time.Since(start) >= 80*time.Millisecond, time.Since(start))
	assert.Equal(t, 6, len(ms.Writes()))
}

func TestShutdownDrainsQueue(t *testing.T) {
	s, ms, _ := newTestService(t, 0)
	for i := 0; i < 10; i++ {
		s.Save(entity.MultiKey("Pet", "U1", string(rune('a'+i))), entity.Fields{}, nil)
	}
	s.Shutdown()
	assert.Equal(t, 10, len(ms.Writes()))
	assert.T(t, ms.IsClosed())
}

func TestOpen(t *testing.T) {
	es, err := Open(&config.StorageConfig{Type: "filesystem", Directory: t.TempDir()})
	assert.Equal(t, nil, err)
	es.Close()

	es, err = Open(&config.StorageConfig{Type: "memory"})
	assert.Equal(t, nil, err)
	es.Close()

	_, err = Open(&config.StorageConfig{Type: "sqlite"})
	assert.NotEqual(t, nil, err)

	opener := ConfigOpener(&config.StorageConfig{Type: "memory"})
	es1, _ := opener()
	es2, _ := opener()
	assert.T(t, es1 == es2, "memory storage should be opened once")
}
