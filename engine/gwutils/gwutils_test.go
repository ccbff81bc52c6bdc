package gwutils

import (
	"fmt"
	"testing"

	"github.com/bmizerany/assert"
)

func TestRunPanicless(t *testing.T) {
	assert.T(t, RunPanicless(func() {
		panic(1)
	}))
	assert.T(t, RunPanicless(func() {
		panic(fmt.Errorf("bad"))
	}))
	assert.T(t, !RunPanicless(func() {}))
}

func TestRepeatUntilPanicless(t *testing.T) {
	n := 0
	RepeatUntilPanicless(func() {
		n++
		if n < 3 {
			panic(n)
		}
	})
	assert.Equal(t, 3, n)
}

func TestCatchPanic(t *testing.T) {
	err := CatchPanic(func() {
		panic("boom")
	})
	assert.T(t, err != nil)
	err = CatchPanic(func() {
		panic(fmt.Errorf("bad"))
	})
	assert.T(t, err != nil)
	assert.Equal(t, nil, CatchPanic(func() {}))
}
