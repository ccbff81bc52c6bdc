package gwutils

import (
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/gwlog"
)

// RunPanicless calls a function panic-freely
func RunPanicless(f func()) (panicked bool) {
	defer func() {
		err := recover()
		if err != nil {
			gwlog.TraceError("%v panic: %v", f, err)
			panicked = true
		}
	}()

	f()
	return
}

// RepeatUntilPanicless runs the function repeatly until there is no panic
func RepeatUntilPanicless(f func()) {
	for RunPanicless(f) {
	}
}

// CatchPanic calls a function and returns the panic as an error, if any
func CatchPanic(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			gwlog.TraceError("catched panic: %v", r)
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "panic")
			} else {
				err = errors.Errorf("panic: %v", r)
			}
		}
	}()

	f()
	return
}
