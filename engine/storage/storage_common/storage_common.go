package storagecommon

import (
	"encoding/base64"

	"github.com/xiaonanln/gwscope/engine/entity"
)

// EntityStorage defines the interface of entity storage backends
//
// Read returns (nil, nil) when the key was never written.
// List returns the instance keys of the Multi entities of owner.
type EntityStorage interface {
	List(typeName string, owner string) ([]string, error)
	Write(key entity.Key, data entity.Fields) error
	Read(key entity.Key) (entity.Fields, error)
	Exists(key entity.Key) (bool, error)
	Close()
	IsEOF(err error) bool
}

// EncodeKeyPart encodes an owner or instance key for joining with separators
//
// The result never contains '$', '/', '*', '?', '[' or ']'.
func EncodeKeyPart(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// DecodeKeyPart reverts EncodeKeyPart
func DecodeKeyPart(s string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	return string(b), err
}

// OwnerPrefix returns the common prefix of the joined keys of all entities of (typeName, owner)
func OwnerPrefix(typeName string, owner string) string {
	return typeName + "$" + EncodeKeyPart(owner) + "$"
}

// JoinKey joins the parts of key into one string key, distinct for distinct entity keys
func JoinKey(key entity.Key) string {
	return OwnerPrefix(key.TypeName, key.Owner) + EncodeKeyPart(key.Instance)
}
