package entitystoragerediscluster

import (
	"io"
	"time"

	rediscluster "github.com/chasex/redis-go-cluster"
	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/netutil"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
)

var (
	dataPacker = netutil.MessagePackMsgPacker{}
)

// redisClusterEntityStorage keeps one key per entity plus one set per (type, owner) listing
// Multi instances, because SCAN does not span the nodes of a cluster
type redisClusterEntityStorage struct {
	c rediscluster.Cluster
}

// OpenRedisCluster opens redis cluster as entity storage
func OpenRedisCluster(startNodes []string) (storagecommon.EntityStorage, error) {
	c, err := rediscluster.NewCluster(&rediscluster.Options{
		StartNodes:   startNodes,
		ConnTimeout:  10 * time.Second, // Connection timeout
		ReadTimeout:  60 * time.Second, // Read timeout
		WriteTimeout: 60 * time.Second, // Write timeout
		KeepAlive:    1,                // Maximum keep alive connecion in each node
		AliveTime:    10 * time.Minute, // Keep alive timeout
	})

	if err != nil {
		return nil, errors.Wrap(err, "connect redis cluster failed")
	}

	return &redisClusterEntityStorage{
		c: c,
	}, nil
}

func entityKey(key entity.Key) string {
	return storagecommon.JoinKey(key)
}

func instancesKey(typeName string, owner string) string {
	return "$instances$" + storagecommon.OwnerPrefix(typeName, owner)
}

func (es *redisClusterEntityStorage) List(typeName string, owner string) ([]string, error) {
	return redis.Strings(es.c.Do("SMEMBERS", instancesKey(typeName, owner)))
}

func (es *redisClusterEntityStorage) Write(key entity.Key, data entity.Fields) error {
	b, err := dataPacker.PackMsg(map[string]interface{}(data), nil)
	if err != nil {
		return err
	}

	if _, err = es.c.Do("SET", entityKey(key), b); err != nil {
		return err
	}
	if key.Instance != "" {
		_, err = es.c.Do("SADD", instancesKey(key.TypeName, key.Owner), key.Instance)
	}
	return err
}

func (es *redisClusterEntityStorage) Read(key entity.Key) (entity.Fields, error) {
	b, err := redis.Bytes(es.c.Do("GET", entityKey(key)))
	if err == redis.ErrNil || (err == nil && b == nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err = dataPacker.UnpackMsg(b, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return entity.Fields(data), nil
}

func (es *redisClusterEntityStorage) Exists(key entity.Key) (bool, error) {
	return redis.Bool(es.c.Do("EXISTS", entityKey(key)))
}

// Close does nothing: the cluster client keeps its node connections until the process exits
func (es *redisClusterEntityStorage) Close() {
}

func (es *redisClusterEntityStorage) IsEOF(err error) bool {
	err = errors.Cause(err)
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
