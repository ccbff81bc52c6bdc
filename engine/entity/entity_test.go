package entity

import (
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

type recordingReplicator struct {
	sync.Mutex
	replicated []Snapshot
	evicted    []Snapshot
}

func (rr *recordingReplicator) Replicate(scope Scope, snap Snapshot) {
	rr.Lock()
	rr.replicated = append(rr.replicated, snap)
	rr.Unlock()
}

func (rr *recordingReplicator) Evict(scope Scope, snap Snapshot) {
	rr.Lock()
	rr.evicted = append(rr.evicted, snap)
	rr.Unlock()
}

type recordingMarker struct {
	sync.Mutex
	marks []Key
}

func (rm *recordingMarker) MarkDirty(key Key) {
	rm.Lock()
	rm.marks = append(rm.marks, key)
	rm.Unlock()
}

func newTestRegistry() (*Registry, *recordingReplicator, *recordingMarker) {
	rep := &recordingReplicator{}
	marker := &recordingMarker{}
	r := NewRegistry(rep)
	r.SetDirtyMarker(marker)
	r.RegisterType("Inventory", ScopeSingle).DefineField("gold", 0)
	r.RegisterType("Pet", ScopeMulti).DefineField("name", "")
	r.RegisterType("World", ScopeShared).SetDefaults(func() Fields {
		return Fields{"online": 0}
	})
	return r, rep, marker
}

func storedLoader(fields Fields) LoadFunc {
	return func(key Key) (Fields, error) {
		return fields.Clone(), nil
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "Inventory<U1>", SingleKey("Inventory", "U1").String())
	assert.Equal(t, "Pet<U1/p1>", MultiKey("Pet", "U1", "p1").String())
	assert.Equal(t, "World<$shared>", SharedKey("World").String())
	assert.T(t, SharedKey("World").IsShared())
}

func TestScope(t *testing.T) {
	assert.T(t, ScopeSingle.IsPersistent())
	assert.T(t, ScopeMulti.IsPersistent())
	assert.T(t, !ScopeShared.IsPersistent())
	assert.Equal(t, "Multi", ScopeMulti.String())
	assert.T(t, !Scope(0).IsValid())
}

func TestGetOrCreateLoadsStoredFields(t *testing.T) {
	r, rep, marker := newTestRegistry()
	e, err := r.GetOrCreate("Inventory", "U1", "", nil, storedLoader(Fields{"gold": 100}))
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(100), e.GetInt("gold"))
	assert.Equal(t, SingleKey("Inventory", "U1"), e.Key())
	assert.T(t, !e.IsDirty(), "loaded entity should be clean")
	assert.Equal(t, 0, len(marker.marks))
	assert.Equal(t, 1, len(rep.replicated))

	same, err := r.GetOrCreate("Inventory", "U1", "", nil, func(key Key) (Fields, error) {
		t.Fatalf("loader should not be called for a live entity")
		return nil, nil
	})
	assert.Equal(t, nil, err)
	assert.T(t, same == e)
}

func TestGetOrCreateNotFoundUsesDefaults(t *testing.T) {
	r, _, marker := newTestRegistry()
	e, err := r.GetOrCreate("Inventory", "U2", "", nil, storedLoader(nil))
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(0), e.GetInt("gold"))
	assert.T(t, e.IsDirty(), "new entity should be written")
	assert.Equal(t, []Key{SingleKey("Inventory", "U2")}, marker.marks)

	e2, err := r.GetOrCreate("Inventory", "U3", "", func() Fields {
		return Fields{"gold": 7}
	}, storedLoader(nil))
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(7), e2.GetInt("gold"))
}

func TestLoadFailureCreatesNothing(t *testing.T) {
	r, rep, _ := newTestRegistry()
	storeErr := errors.New("store unreachable")
	e, err := r.GetOrCreate("Inventory", "U1", "", nil, func(key Key) (Fields, error) {
		return nil, storeErr
	})
	assert.T(t, e == nil)
	assert.T(t, IsLoadFailure(err), err)
	var lf *LoadFailure
	assert.T(t, errors.As(err, &lf))
	assert.Equal(t, SingleKey("Inventory", "U1"), lf.Key)
	assert.Equal(t, storeErr, errors.Cause(lf.Err))
	assert.T(t, r.Get("Inventory", "U1", "") == nil)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, len(rep.replicated))
}

func TestConcurrentGetOrCreateReturnsSameEntity(t *testing.T) {
	r, _, _ := newTestRegistry()
	var loads int
	var loadsLock sync.Mutex
	release := make(chan struct{})
	loader := func(key Key) (Fields, error) {
		loadsLock.Lock()
		loads++
		loadsLock.Unlock()
		<-release
		return Fields{"gold": 5}, nil
	}

	const N = 20
	results := make([]*Entity, N)
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.GetOrCreate("Inventory", "U1", "", nil, loader)
			if err != nil {
				t.Error(err)
			}
			results[i] = e
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 1; i < N; i++ {
		assert.T(t, results[i] == results[0], "all callers should get the same entity")
	}
	assert.Equal(t, 1, r.Len())
	assert.T(t, loads >= 1)
}

func TestInvalidKeys(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.GetOrCreate("Inventory", "U1", "x", nil, nil)
	assert.Equal(t, ErrInvalidKey, errors.Cause(err))
	_, err = r.GetOrCreate("Pet", "U1", "", nil, nil)
	assert.Equal(t, ErrInvalidKey, errors.Cause(err))
	_, err = r.GetOrCreate("Inventory", "", "", nil, nil)
	assert.Equal(t, ErrInvalidKey, errors.Cause(err))
	_, err = r.GetOrCreate("Unknown", "U1", "", nil, nil)
	assert.Equal(t, ErrUnknownType, errors.Cause(err))
}

func TestSharedIgnoresLoaderAndOwner(t *testing.T) {
	r, _, marker := newTestRegistry()
	e, err := r.GetOrCreate("World", "anyone", "", nil, func(key Key) (Fields, error) {
		t.Fatalf("shared entities are never loaded")
		return nil, nil
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, SharedKey("World"), e.Key())
	e.IncInt("online", 1)
	assert.T(t, !e.IsDirty())
	assert.Equal(t, 0, len(marker.marks))
	assert.T(t, r.Get("World", "", "") == e)
}

func TestMultiInstancesAreIndependent(t *testing.T) {
	r, _, _ := newTestRegistry()
	p1, _ := r.GetOrCreate("Pet", "U1", "p1", nil, storedLoader(Fields{"name": "Rex"}))
	p2, _ := r.GetOrCreate("Pet", "U1", "p2", nil, storedLoader(Fields{"name": "Tom"}))
	r.GetOrCreate("Pet", "U2", "p1", nil, storedLoader(Fields{"name": "Other"}))

	p1.SetStr("name", "Max")
	assert.Equal(t, "Max", p1.GetStr("name"))
	assert.Equal(t, "Tom", p2.GetStr("name"))
	assert.Equal(t, []string{"p1", "p2"}, r.ListInstancesForOwner("Pet", "U1"))
	assert.Equal(t, []string{"p1"}, r.ListInstancesForOwner("Pet", "U2"))
	assert.Equal(t, 0, len(r.ListInstancesForOwner("Pet", "U3")))

	assert.T(t, r.Remove("Pet", "U1", "p1"))
	assert.T(t, !r.Remove("Pet", "U1", "p1"))
	assert.Equal(t, []string{"p2"}, r.ListInstancesForOwner("Pet", "U1"))
	assert.Equal(t, map[string]int{"Pet": 2}, r.CountByType())
}

func TestMutationNotifiesReplicatorAndQueue(t *testing.T) {
	r, rep, marker := newTestRegistry()
	e, _ := r.GetOrCreate("Inventory", "U1", "", nil, storedLoader(Fields{"gold": 100}))
	seq := e.Seq()

	assert.Equal(t, int64(150), e.IncInt("gold", 50))
	assert.T(t, e.IsDirty())
	assert.Equal(t, seq+1, e.Seq())
	assert.Equal(t, []Key{e.Key()}, marker.marks)

	last := rep.replicated[len(rep.replicated)-1]
	assert.Equal(t, e.Key(), last.Key)
	assert.Equal(t, seq+1, last.Seq)
	assert.Equal(t, Fields{"gold": int64(150)}, last.Fields)

	// snapshots are copies
	last.Fields["gold"] = int64(1)
	assert.Equal(t, int64(150), e.GetInt("gold"))

	assert.T(t, !e.MarkPersisted(seq), "older snapshot must not clean the entity")
	assert.T(t, e.MarkPersisted(seq+1))
	assert.T(t, !e.IsDirty())
}

func TestUpdateIsOneMutation(t *testing.T) {
	r, rep, _ := newTestRegistry()
	e, _ := r.GetOrCreate("Inventory", "U1", "", nil, storedLoader(Fields{"gold": 1}))
	before := len(rep.replicated)
	e.Update(func(fields Fields) {
		fields["gold"] = 2
		fields["gems"] = int32(3)
		delete(fields, "missing")
	})
	assert.Equal(t, before+1, len(rep.replicated))
	assert.Equal(t, int64(3), e.GetInt("gems"))
	assert.Equal(t, int64(2), e.Get("gold"))
}

func TestRemoveEvictsAndForbidsMutation(t *testing.T) {
	r, rep, _ := newTestRegistry()
	e, _ := r.GetOrCreate("Inventory", "U1", "", nil, storedLoader(Fields{"gold": 1}))
	assert.T(t, r.Remove("Inventory", "U1", ""))
	assert.T(t, e.IsDestroyed())
	assert.Equal(t, 1, len(rep.evicted))
	assert.T(t, rep.evicted[0].Removed)
	assert.T(t, r.Get("Inventory", "U1", "") == nil)

	defer func() {
		assert.T(t, recover() != nil, "mutating a removed entity should panic")
	}()
	e.SetInt("gold", 2)
}

func TestReservedFields(t *testing.T) {
	r, _, _ := newTestRegistry()
	e, _ := r.GetOrCreate("Inventory", "U1", "", nil, storedLoader(Fields{
		"gold":        1,
		FieldType:     "Inventory",
		FieldOwner:    "U1",
		FieldInstance: "",
	}))
	assert.Equal(t, Fields{"gold": int64(1)}, e.Fields())

	defer func() {
		assert.T(t, recover() != nil, "reserved field names should panic")
	}()
	e.Set(FieldOwner, "U2")
}

func TestFieldsConversion(t *testing.T) {
	f := Fields{
		"i": float64(3), // json numbers
		"f": int64(2),
		"s": "str",
		"b": true,
		"m": map[interface{}]interface{}{"k": 1},
	}
	assert.Equal(t, int64(3), f.GetInt("i"))
	assert.Equal(t, float64(2), f.GetFloat("f"))
	assert.Equal(t, "str", f.GetStr("s"))
	assert.Equal(t, true, f.GetBool("b"))
	assert.Equal(t, int64(0), f.GetInt("missing"))
	assert.Equal(t, "", f.GetStr("missing"))

	mismatched := Fields{"n": int64(1), "z": float64(0), "s": "yes", "bs": []byte("raw")}
	assert.Equal(t, "", mismatched.GetStr("n"))
	assert.Equal(t, "raw", mismatched.GetStr("bs"))
	assert.Equal(t, true, mismatched.GetBool("n"))
	assert.Equal(t, false, mismatched.GetBool("z"))
	assert.Equal(t, false, mismatched.GetBool("s"))

	n := sanitizeFields(Key{}, f)
	assert.Equal(t, map[string]interface{}{"k": int64(1)}, n["m"])

	c := n.Clone()
	c["m"].(map[string]interface{})["k"] = int64(2)
	assert.Equal(t, int64(1), n["m"].(map[string]interface{})["k"])
}
