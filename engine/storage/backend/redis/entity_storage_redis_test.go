package entitystorageredis

import (
	"testing"

	"github.com/bmizerany/assert"
	"github.com/google/uuid"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/typeconv"
)

func openTestStorage(t *testing.T) *redisEntityStorage {
	es, err := OpenRedis("redis://localhost:6379", 0)
	if err != nil {
		t.Skipf("redis is not available: %s", err)
	}
	return es.(*redisEntityStorage)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `Pet$a\*b\?$`, escapeGlob("Pet$a*b?$"))
	assert.Equal(t, `\[x\]\\`, escapeGlob(`[x]\`))
}

func TestEntityKeyDistinct(t *testing.T) {
	assert.NotEqual(t, entityKey(entity.MultiKey("Pet", "a", "b$c")), entityKey(entity.MultiKey("Pet", "a$b", "c")))
	assert.NotEqual(t, entityKey(entity.SingleKey("Pet", "a$b")), entityKey(entity.MultiKey("Pet", "a", "b")))
}

func TestRedisEntityStorage(t *testing.T) {
	es := openTestStorage(t)
	defer es.Close()

	owner := uuid.NewString()
	gwlog.Infof("TESTING OWNER: %s", owner)
	key := entity.SingleKey("Inventory", owner)
	data, err := es.Read(key)
	assert.Equal(t, nil, err)
	assert.T(t, data == nil, "should be nil")

	testData := entity.Fields{
		"a": 1,
		"b": "2",
		"c": true,
		"d": 1.11,
	}
	assert.Equal(t, nil, es.Write(key, testData))

	verifyData, err := es.Read(key)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(1), typeconv.Int(verifyData["a"]))
	assert.Equal(t, "2", verifyData["b"])
	assert.Equal(t, true, verifyData["c"])
	assert.Equal(t, 1.11, verifyData["d"])

	exists, err := es.Exists(key)
	assert.Equal(t, nil, err)
	assert.T(t, exists)
}

func TestRedisList(t *testing.T) {
	es := openTestStorage(t)
	defer es.Close()

	owner := uuid.NewString()
	assert.Equal(t, nil, es.Write(entity.MultiKey("Pet", owner, "p1"), entity.Fields{}))
	assert.Equal(t, nil, es.Write(entity.MultiKey("Pet", owner, "p2"), entity.Fields{}))
	assert.Equal(t, nil, es.Write(entity.SingleKey("Pet", owner), entity.Fields{}))

	instances, err := es.List("Pet", owner)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(instances))
}

func TestRedisListSeparatorInKeys(t *testing.T) {
	es := openTestStorage(t)
	defer es.Close()

	owner := uuid.NewString()
	left, right := entity.MultiKey("Pet", owner, "b$c"), entity.MultiKey("Pet", owner+"$b", "c")
	assert.Equal(t, nil, es.Write(left, entity.Fields{"name": "left"}))
	assert.Equal(t, nil, es.Write(right, entity.Fields{"name": "right"}))

	data, err := es.Read(left)
	assert.Equal(t, nil, err)
	assert.Equal(t, "left", data.GetStr("name"))

	instances, err := es.List("Pet", owner)
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"b$c"}, instances)

	instances, err = es.List("Pet", owner+"$b")
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"c"}, instances)
}
