package entity

import (
	"reflect"

	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/typeconv"
)

// Fields is the user data of an entity: a map from field name to value
//
// Values are nil, bool, int64, float64, string, []byte, []interface{} or map[string]interface{}.
type Fields map[string]interface{}

// Reserved field names are used by storage backends for addressing and never kept in Fields
const (
	FieldType     = "$type"
	FieldOwner    = "$owner"
	FieldInstance = "$instance"
)

var float64Type = reflect.TypeOf(float64(0))

// IsReservedField returns if the name is used for addressing
func IsReservedField(name string) bool {
	return name == FieldType || name == FieldOwner || name == FieldInstance
}

// Clone returns a deep copy of the fields
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	c := make(Fields, len(f))
	for k, v := range f {
		c[k] = cloneValue(v)
	}
	return c
}

// GetInt returns the field as int64, 0 if missing
func (f Fields) GetInt(name string) int64 {
	v, ok := f[name]
	if !ok || v == nil {
		return 0
	}
	return typeconv.Int(v)
}

// GetFloat returns the field as float64, 0 if missing
func (f Fields) GetFloat(name string) float64 {
	v, ok := f[name]
	if !ok || v == nil {
		return 0
	}
	if fv, ok := v.(float64); ok {
		return fv
	}
	return typeconv.Convert(v, float64Type).Float()
}

// GetStr returns the field as string, "" if missing or not a string
func (f Fields) GetStr(name string) string {
	switch v := f[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		gwlog.Warnf("field %s is %T, not string", name, v)
		return ""
	}
}

// GetBool returns the field as bool, false if missing
//
// Numbers are true when non-zero. Other types give false.
func (f Fields) GetBool(name string) bool {
	switch v := f[name].(type) {
	case nil:
		return false
	case bool:
		return v
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return typeconv.Int(v) != 0
	case float32, float64:
		return typeconv.Float(v) != 0
	default:
		gwlog.Warnf("field %s is %T, not bool", name, v)
		return false
	}
}

// sanitizeFields normalizes loaded or default data and strips addressing metadata
func sanitizeFields(key Key, data Fields) Fields {
	fields := make(Fields, len(data))
	for k, v := range data {
		if IsReservedField(k) {
			gwlog.Debugf("%s: dropping reserved field %s from loaded data", key, k)
			continue
		}
		fields[k] = normalizeValue(v)
	}
	return fields
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return append([]byte(nil), val...)
	case Fields:
		return normalizeMap(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case map[interface{}]interface{}:
		return normalizeMap(typeconv.MapStringAnything(val))
	case []interface{}:
		l := make([]interface{}, len(val))
		for i, item := range val {
			l[i] = normalizeValue(item)
		}
		return l
	}
	gwlog.Panicf("unsupported field value %v of type %T", v, v)
	return nil
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = normalizeValue(v)
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(val))
		for k, item := range val {
			c[k] = cloneValue(item)
		}
		return c
	case []interface{}:
		l := make([]interface{}, len(val))
		for i, item := range val {
			l[i] = cloneValue(item)
		}
		return l
	case []byte:
		return append([]byte(nil), val...)
	}
	return v
}
