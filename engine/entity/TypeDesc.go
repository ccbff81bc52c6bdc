package entity

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/gwlog"
)

// DefaultsFunc produces the fields of a newly created entity
type DefaultsFunc func() Fields

// LoadFunc loads the stored fields of key, (nil, nil) means the key was never stored
type LoadFunc func(key Key) (Fields, error)

// TypeDesc is the entity type description for registering entity types
type TypeDesc struct {
	name          string
	scope         Scope
	defaults      DefaultsFunc
	fieldDefaults Fields
}

// Name returns the type name
func (desc *TypeDesc) Name() string {
	return desc.name
}

// Scope returns the scope of the type
func (desc *TypeDesc) Scope() Scope {
	return desc.scope
}

// SetDefaults sets the function producing fields of new entities
func (desc *TypeDesc) SetDefaults(defaults DefaultsFunc) *TypeDesc {
	desc.defaults = defaults
	return desc
}

// DefineField sets the default value of one field for new entities
func (desc *TypeDesc) DefineField(name string, defaultValue interface{}) *TypeDesc {
	if IsReservedField(name) {
		gwlog.Panicf("entity type %s: field name %s is reserved", desc.name, name)
	}
	gwlog.Infof("        Field %s.%s = %v", desc.name, name, defaultValue)
	desc.fieldDefaults[name] = normalizeValue(defaultValue)
	return desc
}

// FieldNames returns the names of defined fields in order
func (desc *TypeDesc) FieldNames() []string {
	names := make([]string, 0, len(desc.fieldDefaults))
	for name := range desc.fieldDefaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaults returns the fields of a new entity of this type
func (desc *TypeDesc) NewDefaults() Fields {
	return desc.newFields(nil)
}

func (desc *TypeDesc) newFields(defaults DefaultsFunc) Fields {
	if defaults == nil {
		defaults = desc.defaults
	}
	var fields Fields
	if defaults != nil {
		fields = defaults()
	}
	if fields == nil {
		fields = Fields{}
	}
	for name, val := range desc.fieldDefaults {
		if _, ok := fields[name]; !ok {
			fields[name] = cloneValue(val)
		}
	}
	return fields
}

func (desc *TypeDesc) makeKey(owner string, instance string) (Key, error) {
	switch desc.scope {
	case ScopeShared:
		return SharedKey(desc.name), nil
	case ScopeSingle:
		if owner == "" || instance != "" {
			return Key{}, errors.Wrapf(ErrInvalidKey, "%s is Single: owner required, instance must be empty (owner=%q, instance=%q)", desc.name, owner, instance)
		}
		return SingleKey(desc.name, owner), nil
	case ScopeMulti:
		if owner == "" || instance == "" {
			return Key{}, errors.Wrapf(ErrInvalidKey, "%s is Multi: owner and instance required (owner=%q, instance=%q)", desc.name, owner, instance)
		}
		return MultiKey(desc.name, owner, instance), nil
	}
	return Key{}, errors.Wrapf(ErrInvalidKey, "%s has invalid scope %s", desc.name, desc.scope)
}
