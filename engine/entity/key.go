package entity

import "fmt"

// Key is the composite address of an entity in the registry
//
// Instance is empty for Single and Shared entities, Owner is SharedOwner for Shared entities.
type Key struct {
	TypeName string
	Owner    string
	Instance string
}

// SingleKey returns the key of the Single entity of type owned by owner
func SingleKey(typeName string, owner string) Key {
	return Key{TypeName: typeName, Owner: owner}
}

// SharedKey returns the key of the Shared entity of type
func SharedKey(typeName string) Key {
	return Key{TypeName: typeName, Owner: SharedOwner}
}

// MultiKey returns the key of one Multi entity
func MultiKey(typeName string, owner string, instance string) Key {
	return Key{TypeName: typeName, Owner: owner, Instance: instance}
}

// IsShared returns if the key addresses a Shared entity
func (k Key) IsShared() bool {
	return k.Owner == SharedOwner
}

func (k Key) String() string {
	if k.Instance == "" {
		return fmt.Sprintf("%s<%s>", k.TypeName, k.Owner)
	}
	return fmt.Sprintf("%s<%s/%s>", k.TypeName, k.Owner, k.Instance)
}

func (k Key) flightKey() string {
	return k.TypeName + "\x00" + k.Owner + "\x00" + k.Instance
}
