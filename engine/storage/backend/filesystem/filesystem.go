package entitystoragefilesystem

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
)

type fileSystemEntityStorage struct {
	directory string
}

// OpenDirectory opens the directory as entity storage, one JSON file per entity
func OpenDirectory(directory string) (storagecommon.EntityStorage, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.Wrapf(err, "create storage directory %s", directory)
	}

	return &fileSystemEntityStorage{
		directory: directory,
	}, nil
}

func getFileName(key entity.Key) string {
	return storagecommon.JoinKey(key)
}

func (es *fileSystemEntityStorage) getFilePath(key entity.Key) string {
	return filepath.Join(es.directory, getFileName(key))
}

func (es *fileSystemEntityStorage) Write(key entity.Key, data entity.Fields) error {
	saveFile := es.getFilePath(key)
	dataBytes, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	if consts.DEBUG_SAVE_LOAD {
		gwlog.Debugf("Saving to file %s: %s", saveFile, string(dataBytes))
	}
	// write then rename, so a crash never leaves a truncated record
	tmpFile := saveFile + ".tmp"
	if err = os.WriteFile(tmpFile, dataBytes, 0644); err != nil {
		return err
	}
	return os.Rename(tmpFile, saveFile)
}

func (es *fileSystemEntityStorage) Read(key entity.Key) (entity.Fields, error) {
	dataBytes, err := os.ReadFile(es.getFilePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var data entity.Fields
	if err = json.Unmarshal(dataBytes, &data); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", key)
	}
	if data == nil {
		data = entity.Fields{}
	}
	return data, nil
}

func (es *fileSystemEntityStorage) Exists(key entity.Key) (bool, error) {
	_, err := os.Stat(es.getFilePath(key))
	if err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (es *fileSystemEntityStorage) List(typeName string, owner string) ([]string, error) {
	prefix := storagecommon.OwnerPrefix(typeName, owner)
	files, err := filepath.Glob(filepath.Join(es.directory, prefix+"*"))
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(files))
	for _, fpath := range files {
		_, fn := filepath.Split(fpath)
		if !strings.HasPrefix(fn, prefix) || strings.HasSuffix(fn, ".tmp") {
			continue
		}
		instance, err := storagecommon.DecodeKeyPart(fn[len(prefix):])
		if err != nil {
			gwlog.Errorf("filesystem storage: invalid file %s: %s", fpath, err)
			continue
		}
		if len(instance) > 0 {
			res = append(res, instance)
		}
	}
	return res, nil
}

func (es *fileSystemEntityStorage) Close() {
	// need to do nothing
}

func (es *fileSystemEntityStorage) IsEOF(err error) bool {
	return false
}
