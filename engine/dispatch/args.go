package dispatch

import (
	"reflect"

	"github.com/xiaonanln/typeconv"
)

var (
	int64Type   = reflect.TypeOf(int64(0))
	float64Type = reflect.TypeOf(float64(0))
)

// Args is the argument list passed to every handler of a table
//
// Getters panic with an InvalidArgumentError when the argument has the wrong type,
// the panic is turned into a declined request by Dispatch.
type Args []interface{}

// Len returns the number of arguments
func (a Args) Len() int {
	return len(a)
}

// Get returns the i-th argument, nil if absent
func (a Args) Get(i int) interface{} {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// IsNil returns if the i-th argument is absent or nil
func (a Args) IsNil(i int) bool {
	return a.Get(i) == nil
}

// Int returns the i-th argument as int64, 0 if nil
func (a Args) Int(i int) int64 {
	v := a.Get(i)
	if v == nil {
		return 0
	}
	if !isNumber(v) {
		panic(InvalidArgument("argument %d: expected number, got %T", i, v))
	}
	return typeconv.Convert(v, int64Type).Int()
}

// Float returns the i-th argument as float64, 0 if nil
func (a Args) Float(i int) float64 {
	v := a.Get(i)
	if v == nil {
		return 0
	}
	if !isNumber(v) {
		panic(InvalidArgument("argument %d: expected number, got %T", i, v))
	}
	return typeconv.Convert(v, float64Type).Float()
}

// Str returns the i-th argument as string, "" if nil
func (a Args) Str(i int) string {
	v := a.Get(i)
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	panic(InvalidArgument("argument %d: expected string, got %T", i, v))
}

// Bool returns the i-th argument as bool, false if nil
func (a Args) Bool(i int) bool {
	v := a.Get(i)
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	panic(InvalidArgument("argument %d: expected bool, got %T", i, v))
}

func isNumber(v interface{}) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
