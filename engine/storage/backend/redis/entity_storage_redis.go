package entitystorageredis

import (
	"io"
	"strings"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/netutil"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
)

const (
	_SCAN_COUNT = 1000
)

var (
	dataPacker = netutil.MessagePackMsgPacker{}
)

type redisEntityStorage struct {
	pool *redis.Pool
}

// OpenRedis opens redis as entity storage
func OpenRedis(url string, dbindex int) (storagecommon.EntityStorage, error) {
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(url, redis.DialDatabase(dbindex))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	c := pool.Get()
	defer c.Close()
	if _, err := c.Do("PING"); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "redis dial failed")
	}

	return &redisEntityStorage{
		pool: pool,
	}, nil
}

func entityKey(key entity.Key) string {
	return storagecommon.JoinKey(key)
}

// escapeGlob escapes the SCAN MATCH pattern characters of s
func escapeGlob(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func packData(data entity.Fields) (b []byte, err error) {
	b, err = dataPacker.PackMsg(map[string]interface{}(data), b)
	return
}

func unpackData(b []byte) (entity.Fields, error) {
	var data map[string]interface{}
	if err := dataPacker.UnpackMsg(b, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return entity.Fields(data), nil
}

func (es *redisEntityStorage) List(typeName string, owner string) ([]string, error) {
	c := es.pool.Get()
	defer c.Close()

	prefix := storagecommon.OwnerPrefix(typeName, owner)
	keyMatch := escapeGlob(prefix) + "?*"
	cursor := "0"
	var instances []string
	for {
		r, err := redis.Values(c.Do("SCAN", cursor, "MATCH", keyMatch, "COUNT", _SCAN_COUNT))
		if err != nil {
			return nil, err
		}
		cursor, err = redis.String(r[0], nil)
		if err != nil {
			return nil, err
		}
		keys, err := redis.Strings(r[1], nil)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			instance, err := storagecommon.DecodeKeyPart(key[len(prefix):])
			if err != nil {
				gwlog.Errorf("redis storage: invalid key %s: %s", key, err)
				continue
			}
			instances = append(instances, instance)
		}
		if cursor == "0" {
			break
		}
	}
	return instances, nil
}

func (es *redisEntityStorage) Write(key entity.Key, data entity.Fields) error {
	b, err := packData(data)
	if err != nil {
		return err
	}

	c := es.pool.Get()
	defer c.Close()
	_, err = c.Do("SET", entityKey(key), b)
	return err
}

func (es *redisEntityStorage) Read(key entity.Key) (entity.Fields, error) {
	c := es.pool.Get()
	defer c.Close()
	b, err := redis.Bytes(c.Do("GET", entityKey(key)))
	if err == redis.ErrNil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return unpackData(b)
}

func (es *redisEntityStorage) Exists(key entity.Key) (bool, error) {
	c := es.pool.Get()
	defer c.Close()
	return redis.Bool(c.Do("EXISTS", entityKey(key)))
}

func (es *redisEntityStorage) Close() {
	es.pool.Close()
}

func (es *redisEntityStorage) IsEOF(err error) bool {
	err = errors.Cause(err)
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
