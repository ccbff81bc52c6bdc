package entitystoragefilesystem

import (
	"sort"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwscope/engine/entity"
)

func TestFileSystemEntityStorage(t *testing.T) {
	es, err := OpenDirectory(t.TempDir())
	assert.Equal(t, nil, err)
	defer es.Close()

	key := entity.SingleKey("Inventory", "U1")
	data, err := es.Read(key)
	assert.Equal(t, nil, err)
	assert.T(t, data == nil, "should be nil")
	exists, err := es.Exists(key)
	assert.Equal(t, nil, err)
	assert.T(t, !exists)

	testData := entity.Fields{
		"a": 1,
		"b": "2",
		"c": true,
		"d": 1.11,
	}
	assert.Equal(t, nil, es.Write(key, testData))

	verifyData, err := es.Read(key)
	assert.Equal(t, nil, err)
	assert.Equal(t, float64(1), verifyData["a"])
	assert.Equal(t, "2", verifyData["b"])
	assert.Equal(t, true, verifyData["c"])
	assert.Equal(t, 1.11, verifyData["d"])

	exists, err = es.Exists(key)
	assert.Equal(t, nil, err)
	assert.T(t, exists)
}

func TestFileSystemList(t *testing.T) {
	es, err := OpenDirectory(t.TempDir())
	assert.Equal(t, nil, err)

	for _, k := range []entity.Key{
		entity.MultiKey("Pet", "U1", "p1"),
		entity.MultiKey("Pet", "U1", "p/2"),
		entity.MultiKey("Pet", "U2", "p3"),
		entity.MultiKey("Mount", "U1", "m1"),
		entity.SingleKey("Pet", "U1"),
	} {
		assert.Equal(t, nil, es.Write(k, entity.Fields{"name": k.Instance}))
	}

	instances, err := es.List("Pet", "U1")
	assert.Equal(t, nil, err)
	sort.Strings(instances)
	assert.Equal(t, []string{"p/2", "p1"}, instances)

	instances, err = es.List("Pet", "U3")
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(instances))
}
