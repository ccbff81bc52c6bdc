package storage

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/config"
	"github.com/xiaonanln/gwscope/engine/storage/backend/filesystem"
	"github.com/xiaonanln/gwscope/engine/storage/backend/memory"
	"github.com/xiaonanln/gwscope/engine/storage/backend/mongodb"
	"github.com/xiaonanln/gwscope/engine/storage/backend/redis"
	"github.com/xiaonanln/gwscope/engine/storage/backend/redis_cluster"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
)

// Open opens the storage backend described by the [storage] config
func Open(cfg *config.StorageConfig) (storagecommon.EntityStorage, error) {
	switch cfg.Type {
	case "filesystem":
		return entitystoragefilesystem.OpenDirectory(cfg.Directory)
	case "memory":
		return entitystoragememory.Open(), nil
	case "mongodb":
		return entitystoragemongodb.OpenMongoDB(cfg.Url, cfg.DB)
	case "redis":
		dbindex, err := strconv.Atoi(cfg.DB)
		if err != nil {
			return nil, errors.Wrap(err, "redis db must be integer")
		}
		return entitystorageredis.OpenRedis(cfg.Url, dbindex)
	case "redis_cluster":
		return entitystoragerediscluster.OpenRedisCluster(cfg.StartNodes)
	}
	return nil, errors.Errorf("unknown storage type: %s", cfg.Type)
}

// ConfigOpener returns an Opener opening the configured backend
//
// A memory backend is opened once, reopening it would lose all data.
func ConfigOpener(cfg *config.StorageConfig) Opener {
	if cfg.Type == "memory" {
		es := entitystoragememory.Open()
		return func() (storagecommon.EntityStorage, error) {
			return es, nil
		}
	}
	return func() (storagecommon.EntityStorage, error) {
		return Open(cfg)
	}
}
