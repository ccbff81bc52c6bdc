package post

import (
	"sync"

	"github.com/xiaonanln/gwscope/engine/gwutils"
)

// PostCallback is the type of functions to be posted
type PostCallback func()

// Queue collects callbacks posted from any goroutine and runs them on the goroutine calling Tick
type Queue struct {
	callbacks []PostCallback
	lock      sync.Mutex
}

// NewQueue creates an empty post queue
func NewQueue() *Queue {
	return &Queue{}
}

// Post a callback which will be executed when other things are done in the main routine
//
// Post might be called from other goroutine, so we use a lock to protect the data
func (q *Queue) Post(f PostCallback) {
	q.lock.Lock()
	q.callbacks = append(q.callbacks, f)
	q.lock.Unlock()
}

// Len returns the number of callbacks waiting to run
func (q *Queue) Len() int {
	q.lock.Lock()
	n := len(q.callbacks)
	q.lock.Unlock()
	return n
}

// Tick is called by the main routine to run all posted functions
func (q *Queue) Tick() {
	for { // loop until there is no callbacks posted anymore
		q.lock.Lock()
		if len(q.callbacks) == 0 {
			q.lock.Unlock()
			break
		}
		// switch callbacks in locked section
		callbacksCopy := q.callbacks
		q.callbacks = make([]PostCallback, 0, len(callbacksCopy))
		q.lock.Unlock()

		for _, f := range callbacksCopy {
			gwutils.RunPanicless(f)
		}
	}
}

var defaultQueue = NewQueue()

// Post posts a callback to the default queue of the main game routine
func Post(f PostCallback) {
	defaultQueue.Post(f)
}

// Tick runs all callbacks posted to the default queue
func Tick() {
	defaultQueue.Tick()
}

// Len returns the number of callbacks in the default queue
func Len() int {
	return defaultQueue.Len()
}
