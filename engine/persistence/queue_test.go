package persistence

import (
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/storage"
)

type pendingSave struct {
	key      entity.Key
	fields   entity.Fields
	callback storage.SaveCallbackFunc
}

// fakeSaver records saves, completing them immediately unless hold is set
type fakeSaver struct {
	hold    bool
	err     error
	saves   []pendingSave
	pending []pendingSave
}

func (s *fakeSaver) Save(key entity.Key, fields entity.Fields, callback storage.SaveCallbackFunc) {
	ps := pendingSave{key: key, fields: fields, callback: callback}
	s.saves = append(s.saves, ps)
	if s.hold {
		s.pending = append(s.pending, ps)
		return
	}
	callback(s.err)
}

func (s *fakeSaver) complete(err error) {
	pending := s.pending
	s.pending = nil
	for _, ps := range pending {
		ps.callback(err)
	}
}

func (s *fakeSaver) savesOf(key entity.Key) []pendingSave {
	var res []pendingSave
	for _, ps := range s.saves {
		if ps.key == key {
			res = append(res, ps)
		}
	}
	return res
}

func setup(maxWrites int) (*entity.Registry, *Queue, *fakeSaver) {
	registry := entity.NewRegistry(nil)
	registry.RegisterType("Inventory", entity.ScopeSingle).DefineField("gold", 0)
	registry.RegisterType("Pet", entity.ScopeMulti)
	registry.RegisterType("World", entity.ScopeShared)
	saver := &fakeSaver{}
	q := NewQueue(registry, saver, Config{MaxWritesPerTick: maxWrites})
	registry.SetDirtyMarker(q)
	return registry, q, saver
}

func load(fields entity.Fields) entity.LoadFunc {
	return func(key entity.Key) (entity.Fields, error) {
		return fields.Clone(), nil
	}
}

func TestWriteCoalescing(t *testing.T) {
	registry, q, saver := setup(10)
	inv, err := registry.GetOrCreate("Inventory", "U1", "", nil, load(entity.Fields{"gold": 100}))
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, q.Len())

	for i := 0; i < 5; i++ {
		inv.IncInt("gold", 10)
	}
	assert.Equal(t, 1, q.Len())
	assert.T(t, q.IsDirty(inv.Key()))

	q.Tick()
	saves := saver.savesOf(inv.Key())
	assert.Equal(t, 1, len(saves))
	assert.Equal(t, int64(150), saves[0].fields.GetInt("gold"))
	assert.Equal(t, 0, q.Len())
	assert.T(t, !inv.IsDirty())

	q.Tick()
	assert.Equal(t, 1, len(saver.saves), "clean keys are not written again")
}

func TestNewEntityIsWritten(t *testing.T) {
	registry, q, saver := setup(10)
	inv, err := registry.GetOrCreate("Inventory", "U1", "", nil, load(nil))
	assert.Equal(t, nil, err)
	assert.T(t, inv.IsDirty())
	q.Tick()
	assert.Equal(t, 1, len(saver.saves))
	assert.Equal(t, int64(0), saver.saves[0].fields.GetInt("gold"))
}

func TestRateLimitRollsOver(t *testing.T) {
	registry, q, saver := setup(2)
	for _, instance := range []string{"p1", "p2", "p3", "p4", "p5"} {
		pet, err := registry.GetOrCreate("Pet", "U1", instance, nil, load(entity.Fields{}))
		assert.Equal(t, nil, err)
		pet.SetStr("name", instance)
	}
	assert.Equal(t, 5, q.Len())

	q.Tick()
	assert.Equal(t, 2, len(saver.saves))
	q.Tick()
	assert.Equal(t, 4, len(saver.saves))
	q.Tick()
	assert.Equal(t, 5, len(saver.saves))
	assert.Equal(t, 0, q.Len())

	// FIFO order
	assert.Equal(t, "p1", saver.saves[0].key.Instance)
	assert.Equal(t, "p5", saver.saves[4].key.Instance)
}

func TestFailedWriteIsRetried(t *testing.T) {
	registry, q, saver := setup(10)
	inv, _ := registry.GetOrCreate("Inventory", "U1", "", nil, load(entity.Fields{"gold": 1}))
	inv.SetInt("gold", 2)

	saver.err = errors.New("store unavailable")
	q.Tick()
	assert.Equal(t, 1, len(saver.saves))
	assert.Equal(t, 1, q.Len())
	assert.T(t, inv.IsDirty())

	saver.err = nil
	q.Tick()
	assert.Equal(t, 2, len(saver.saves))
	assert.Equal(t, 0, q.Len())
	assert.T(t, !inv.IsDirty())
}

func TestMarkedAgainWhileInFlight(t *testing.T) {
	registry, q, saver := setup(10)
	inv, _ := registry.GetOrCreate("Inventory", "U1", "", nil, load(entity.Fields{"gold": 1}))
	saver.hold = true

	inv.SetInt("gold", 2)
	q.Tick()
	assert.Equal(t, 1, q.Inflight())

	inv.SetInt("gold", 3)
	q.Tick()
	assert.Equal(t, 1, len(saver.saves), "no second write while one is in flight")

	saver.hold = false
	saver.complete(nil)
	assert.T(t, inv.IsDirty(), "the write carried an older state")
	assert.Equal(t, 1, q.Len())

	q.Tick()
	assert.Equal(t, 2, len(saver.saves))
	assert.Equal(t, int64(3), saver.saves[1].fields.GetInt("gold"))
	assert.Equal(t, 0, q.Len())
	assert.T(t, !inv.IsDirty())
}

func TestRemovedBeforeDrainIsDropped(t *testing.T) {
	registry, q, saver := setup(10)
	inv, _ := registry.GetOrCreate("Inventory", "U1", "", nil, load(entity.Fields{"gold": 1}))
	inv.SetInt("gold", 2)
	registry.Remove("Inventory", "U1", "")

	q.Tick()
	assert.Equal(t, 0, len(saver.saves))
	assert.Equal(t, 0, q.Len())
}

func TestFlush(t *testing.T) {
	registry, q, saver := setup(10)
	inv, _ := registry.GetOrCreate("Inventory", "U1", "", nil, load(entity.Fields{"gold": 1}))
	assert.T(t, !q.Flush(inv.Key()), "clean key")

	inv.SetInt("gold", 2)
	assert.T(t, q.Flush(inv.Key()))
	assert.Equal(t, 1, len(saver.saves))
	registry.Remove("Inventory", "U1", "")

	q.Tick()
	assert.Equal(t, 1, len(saver.saves))
	assert.Equal(t, 0, q.Len())
}

func TestFlushAllIgnoresBudget(t *testing.T) {
	registry, q, saver := setup(1)
	for _, owner := range []string{"U1", "U2", "U3"} {
		inv, _ := registry.GetOrCreate("Inventory", owner, "", nil, load(entity.Fields{}))
		inv.SetInt("gold", 5)
	}
	assert.Equal(t, 3, q.FlushAll())
	assert.Equal(t, 3, len(saver.saves))
	assert.Equal(t, 0, q.Len())
}

func TestSharedIsNeverQueued(t *testing.T) {
	registry, q, saver := setup(10)
	world, err := registry.GetOrCreate("World", "", "", nil, nil)
	assert.Equal(t, nil, err)
	world.SetInt("online", 1)
	q.MarkDirty(world.Key())
	assert.Equal(t, 0, q.Len())
	q.Tick()
	assert.Equal(t, 0, len(saver.saves))
}
