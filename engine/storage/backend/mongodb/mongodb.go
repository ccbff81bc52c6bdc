package entitystoragemongodb

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const (
	_DEFAULT_DB_NAME = "gwscope"
)

// mongoDBEntityStorge keeps one collection per entity type, documents are
// {_id, owner, instance, data}
type mongoDBEntityStorge struct {
	db *mgo.Database
}

// OpenMongoDB opens mongodb as entity storage
func OpenMongoDB(url string, dbname string) (storagecommon.EntityStorage, error) {
	gwlog.Debugf("Connecting MongoDB ...")
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "mongodb dial failed")
	}

	session.SetMode(mgo.Monotonic, true)
	if dbname == "" {
		// if db is not specified, use default
		dbname = _DEFAULT_DB_NAME
	}
	return &mongoDBEntityStorge{
		db: session.DB(dbname),
	}, nil
}

// docID encodes owner and instance, so '/' in either never makes two keys share a document
func docID(key entity.Key) string {
	if key.Instance == "" {
		return storagecommon.EncodeKeyPart(key.Owner)
	}
	return storagecommon.EncodeKeyPart(key.Owner) + "/" + storagecommon.EncodeKeyPart(key.Instance)
}

func (es *mongoDBEntityStorge) getCollection(typeName string) *mgo.Collection {
	return es.db.C(typeName)
}

func (es *mongoDBEntityStorge) Write(key entity.Key, data entity.Fields) error {
	col := es.getCollection(key.TypeName)
	_, err := col.UpsertId(docID(key), bson.M{
		"owner":    key.Owner,
		"instance": key.Instance,
		"data":     map[string]interface{}(data),
	})
	return err
}

func (es *mongoDBEntityStorge) Read(key entity.Key) (entity.Fields, error) {
	col := es.getCollection(key.TypeName)
	var doc bson.M
	err := col.FindId(docID(key)).One(&doc)
	if err == mgo.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	data, _ := doc["data"].(bson.M)
	if data == nil {
		return entity.Fields{}, nil
	}
	return entity.Fields(convertM2Map(data)), nil
}

func convertM2Map(m bson.M) map[string]interface{} {
	ma := map[string]interface{}(m)
	convertM2MapInMap(ma)
	return ma
}

func convertM2MapInMap(m map[string]interface{}) {
	for k, v := range m {
		m[k] = convertValue(v)
	}
}

func convertValue(v interface{}) interface{} {
	switch im := v.(type) {
	case bson.M:
		return convertM2Map(im)
	case map[string]interface{}:
		convertM2MapInMap(im)
	case []interface{}:
		for i, item := range im {
			im[i] = convertValue(item)
		}
	case int:
		return int64(im)
	}
	return v
}

func (es *mongoDBEntityStorge) List(typeName string, owner string) ([]string, error) {
	col := es.getCollection(typeName)
	var docs []bson.M
	err := col.Find(bson.M{"owner": owner, "instance": bson.M{"$ne": ""}}).Select(bson.M{"instance": 1}).All(&docs)
	if err != nil {
		return nil, err
	}

	instances := make([]string, 0, len(docs))
	for _, doc := range docs {
		if instance, ok := doc["instance"].(string); ok {
			instances = append(instances, instance)
		}
	}
	return instances, nil
}

func (es *mongoDBEntityStorge) Exists(key entity.Key) (bool, error) {
	n, err := es.getCollection(key.TypeName).FindId(docID(key)).Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (es *mongoDBEntityStorge) Close() {
	es.db.Session.Close()
}

func (es *mongoDBEntityStorge) IsEOF(err error) bool {
	err = errors.Cause(err)
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
