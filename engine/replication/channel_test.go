package replication

import (
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwscope/engine/entity"
)

type recorder struct {
	sync.Mutex
	snaps []entity.Snapshot
}

func (r *recorder) callback(snap entity.Snapshot) {
	r.Lock()
	r.snaps = append(r.snaps, snap)
	r.Unlock()
}

func (r *recorder) golds() []int64 {
	r.Lock()
	defer r.Unlock()
	var res []int64
	for _, snap := range r.snaps {
		res = append(res, snap.Fields.GetInt("gold"))
	}
	return res
}

func inventorySnap(owner string, seq uint64, gold int64) entity.Snapshot {
	return entity.Snapshot{
		Key:    entity.SingleKey("Inventory", owner),
		Seq:    seq,
		Fields: entity.Fields{"gold": gold},
	}
}

func TestSubscribeReplaysImmediately(t *testing.T) {
	ch := NewChannel("Inventory")
	ch.SetFor("U1", inventorySnap("U1", 1, 100))

	rec := &recorder{}
	ch.Subscribe("U1", rec.callback)
	// delivered before Subscribe returned
	assert.Equal(t, []int64{100}, rec.golds())

	ch.SetFor("U1", inventorySnap("U1", 2, 150))
	assert.Equal(t, []int64{100, 150}, rec.golds())
}

func TestSubscribeWithoutValueDeliversNothing(t *testing.T) {
	ch := NewChannel("Inventory")
	rec := &recorder{}
	ch.Subscribe("U1", rec.callback)
	assert.Equal(t, 0, len(rec.golds()))
}

func TestOwnerIsolation(t *testing.T) {
	ch := NewChannel("Inventory")
	u1, u2 := &recorder{}, &recorder{}
	ch.Subscribe("U1", u1.callback)
	ch.Subscribe("U2", u2.callback)

	ch.SetFor("U1", inventorySnap("U1", 2, 150))
	assert.Equal(t, []int64{150}, u1.golds())
	assert.Equal(t, 0, len(u2.golds()))
}

func TestGlobalFanOut(t *testing.T) {
	ch := NewChannel("World")
	var recs []*recorder
	for _, owner := range []string{"U1", "U2", "U3"} {
		rec := &recorder{}
		recs = append(recs, rec)
		ch.Subscribe(owner, rec.callback)
	}
	ch.SetGlobal(entity.Snapshot{Key: entity.SharedKey("World"), Seq: 1, Fields: entity.Fields{"gold": int64(1)}})
	for _, rec := range recs {
		assert.Equal(t, []int64{1}, rec.golds())
	}

	late := &recorder{}
	ch.Subscribe("U4", late.callback)
	assert.Equal(t, []int64{1}, late.golds())
}

func TestStaleSnapshotsAreDropped(t *testing.T) {
	ch := NewChannel("Inventory")
	rec := &recorder{}
	ch.Subscribe("U1", rec.callback)
	ch.SetFor("U1", inventorySnap("U1", 3, 30))
	ch.SetFor("U1", inventorySnap("U1", 2, 20))
	ch.SetFor("U1", inventorySnap("U1", 4, 40))
	assert.Equal(t, []int64{30, 40}, rec.golds())
}

func TestUnsubscribe(t *testing.T) {
	ch := NewChannel("Inventory")
	rec := &recorder{}
	unsub := ch.Subscribe("U1", rec.callback)
	assert.Equal(t, 1, ch.NumSubscribers())
	unsub()
	unsub()
	assert.Equal(t, 0, ch.NumSubscribers())

	// delivery to a gone observer is a silent no-op
	ch.SetFor("U1", inventorySnap("U1", 1, 10))
	assert.Equal(t, 0, len(rec.golds()))
}

func TestMultiReplayAndClear(t *testing.T) {
	ch := NewChannel("Pet")
	ch.SetFor("U1", entity.Snapshot{Key: entity.MultiKey("Pet", "U1", "p2"), Seq: 1, Fields: entity.Fields{"name": "Tom"}})
	ch.SetFor("U1", entity.Snapshot{Key: entity.MultiKey("Pet", "U1", "p1"), Seq: 1, Fields: entity.Fields{"name": "Rex"}})

	rec := &recorder{}
	ch.Subscribe("U1", rec.callback)
	assert.Equal(t, 2, len(rec.snaps))
	assert.Equal(t, "p1", rec.snaps[0].Key.Instance)
	assert.Equal(t, "p2", rec.snaps[1].Key.Instance)

	ch.Clear("U1", entity.Snapshot{Key: entity.MultiKey("Pet", "U1", "p1"), Seq: 2})
	assert.Equal(t, 3, len(rec.snaps))
	assert.T(t, rec.snaps[2].Removed)
	assert.Equal(t, 1, len(ch.Value("U1")))

	// clearing an absent value notifies nobody
	ch.Clear("U1", entity.Snapshot{Key: entity.MultiKey("Pet", "U1", "p1"), Seq: 3})
	assert.Equal(t, 3, len(rec.snaps))
}

func TestPanickingCallbackDoesNotBlockOthers(t *testing.T) {
	ch := NewChannel("World")
	ch.Subscribe("U1", func(snap entity.Snapshot) {
		panic("bad observer")
	})
	rec := &recorder{}
	ch.Subscribe("U2", rec.callback)
	ch.SetGlobal(entity.Snapshot{Key: entity.SharedKey("World"), Seq: 1, Fields: entity.Fields{"gold": int64(5)}})
	assert.Equal(t, []int64{5}, rec.golds())
}

func TestDeliveredFieldsAreCopies(t *testing.T) {
	ch := NewChannel("Inventory")
	var got entity.Snapshot
	ch.Subscribe("U1", func(snap entity.Snapshot) {
		got = snap
	})
	snap := inventorySnap("U1", 1, 1)
	ch.SetFor("U1", snap)
	got.Fields["gold"] = int64(99)
	assert.Equal(t, int64(1), ch.Value("U1")[0].Fields.GetInt("gold"))
}

func TestHubWithRegistry(t *testing.T) {
	hub := NewHub()
	r := entity.NewRegistry(hub)
	r.RegisterType("Inventory", entity.ScopeSingle).DefineField("gold", 0)
	r.RegisterType("World", entity.ScopeShared).DefineField("motd", "")

	inv, _ := r.GetOrCreate("Inventory", "U1", "", nil, func(key entity.Key) (entity.Fields, error) {
		return entity.Fields{"gold": 100}, nil
	})
	world, _ := r.GetOrCreate("World", "", "", nil, nil)
	world.SetStr("motd", "hello")

	u1, u2 := &recorder{}, &recorder{}
	unsub := hub.SubscribeAll("U1", []string{"Inventory", "World"}, u1.callback)
	hub.SubscribeAll("U2", []string{"Inventory", "World"}, u2.callback)
	assert.Equal(t, 2, len(u1.snaps))
	assert.Equal(t, 1, len(u2.snaps))

	inv.IncInt("gold", 50)
	assert.Equal(t, []int64{100, 0, 150}, u1.golds())
	assert.Equal(t, 1, len(u2.snaps))

	r.Remove("Inventory", "U1", "")
	assert.Equal(t, 4, len(u1.snaps))
	assert.T(t, u1.snaps[3].Removed)
	assert.Equal(t, 0, len(hub.Channel("Inventory").Value("U1")))

	unsub()
	assert.Equal(t, 1, hub.Channel("World").NumSubscribers())
}
