package replication

import (
	"sort"
	"sync"

	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/gwutils"
)

// Callback receives snapshots delivered to one observer
type Callback func(snap entity.Snapshot)

type subscription struct {
	id       int
	observer string
	callback Callback
}

// Channel replicates the state of one entity type to its observers
//
// Observers are identified by owner keys. The global value is seen by every observer,
// per-owner values only by the observer of that owner. Deliveries happen synchronously
// under the channel lock, so one observer never sees two snapshots of one key out of order.
// Callbacks must not call back into the channel.
type Channel struct {
	typeName string

	lock        sync.Mutex
	global      *entity.Snapshot
	overrides   map[string]map[string]entity.Snapshot // owner => instance => snapshot
	subscribers map[string][]*subscription
	nextSubID   int
}

// NewChannel creates the channel of an entity type
func NewChannel(typeName string) *Channel {
	return &Channel{
		typeName:    typeName,
		overrides:   map[string]map[string]entity.Snapshot{},
		subscribers: map[string][]*subscription{},
	}
}

// TypeName returns the entity type of the channel
func (ch *Channel) TypeName() string {
	return ch.typeName
}

// SetGlobal sets the value seen by all observers and delivers it to every subscriber
func (ch *Channel) SetGlobal(snap entity.Snapshot) {
	ch.lock.Lock()
	defer ch.lock.Unlock()

	if ch.global != nil && snap.Seq < ch.global.Seq {
		return // stale
	}
	ch.global = &snap
	for _, subs := range ch.subscribers {
		for _, sub := range subs {
			ch.deliver(sub, snap)
		}
	}
}

// SetFor sets the value of one owner and delivers it to the subscribers of that owner only
func (ch *Channel) SetFor(owner string, snap entity.Snapshot) {
	ch.lock.Lock()
	defer ch.lock.Unlock()

	instances := ch.overrides[owner]
	if instances == nil {
		instances = map[string]entity.Snapshot{}
		ch.overrides[owner] = instances
	}
	if old, ok := instances[snap.Key.Instance]; ok && snap.Seq < old.Seq {
		return // stale
	}
	instances[snap.Key.Instance] = snap
	for _, sub := range ch.subscribers[owner] {
		ch.deliver(sub, snap)
	}
}

// Clear drops the value of one owner instance and delivers the removal snapshot to its subscribers
func (ch *Channel) Clear(owner string, removed entity.Snapshot) {
	ch.lock.Lock()
	defer ch.lock.Unlock()

	instances := ch.overrides[owner]
	if _, ok := instances[removed.Key.Instance]; !ok {
		return
	}
	delete(instances, removed.Key.Instance)
	if len(instances) == 0 {
		delete(ch.overrides, owner)
	}
	removed.Removed = true
	for _, sub := range ch.subscribers[owner] {
		ch.deliver(sub, removed)
	}
}

// ClearGlobal drops the global value
func (ch *Channel) ClearGlobal() {
	ch.lock.Lock()
	ch.global = nil
	ch.lock.Unlock()
}

// Subscribe registers the callback of an observer and replays the current values to it
// before returning: every value of the owner if any, the global value otherwise
//
// The returned function unsubscribes, calling it more than once is a no-op.
func (ch *Channel) Subscribe(observerID string, callback Callback) (unsubscribe func()) {
	ch.lock.Lock()
	defer ch.lock.Unlock()

	ch.nextSubID += 1
	sub := &subscription{
		id:       ch.nextSubID,
		observer: observerID,
		callback: callback,
	}
	ch.subscribers[observerID] = append(ch.subscribers[observerID], sub)

	if instances := ch.overrides[observerID]; len(instances) > 0 {
		keys := make([]string, 0, len(instances))
		for instance := range instances {
			keys = append(keys, instance)
		}
		sort.Strings(keys)
		for _, instance := range keys {
			ch.deliver(sub, instances[instance])
		}
	} else if ch.global != nil {
		ch.deliver(sub, *ch.global)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ch.unsubscribe(sub)
		})
	}
}

func (ch *Channel) unsubscribe(sub *subscription) {
	ch.lock.Lock()
	defer ch.lock.Unlock()

	subs := ch.subscribers[sub.observer]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(ch.subscribers, sub.observer)
	} else {
		ch.subscribers[sub.observer] = subs
	}
}

// Value returns the values visible to an observer, per-owner values sorted by instance or the global value
func (ch *Channel) Value(observerID string) []entity.Snapshot {
	ch.lock.Lock()
	defer ch.lock.Unlock()

	var res []entity.Snapshot
	if instances := ch.overrides[observerID]; len(instances) > 0 {
		for _, snap := range instances {
			res = append(res, snap)
		}
		sort.Slice(res, func(i, j int) bool {
			return res[i].Key.Instance < res[j].Key.Instance
		})
	} else if ch.global != nil {
		res = append(res, *ch.global)
	}
	return res
}

// NumSubscribers returns the number of subscriptions
func (ch *Channel) NumSubscribers() int {
	ch.lock.Lock()
	defer ch.lock.Unlock()
	n := 0
	for _, subs := range ch.subscribers {
		n += len(subs)
	}
	return n
}

func (ch *Channel) deliver(sub *subscription, snap entity.Snapshot) {
	if consts.DEBUG_REPLICATION {
		gwlog.Debugf("Channel<%s>: deliver %s#%d to %s", ch.typeName, snap.Key, snap.Seq, sub.observer)
	}
	snap.Fields = snap.Fields.Clone() // every observer gets its own copy
	gwutils.RunPanicless(func() {
		sub.callback(snap)
	})
}
