package persistence

import (
	"sync"
	"time"

	timer "github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
	"github.com/xiaonanln/gwscope/engine/storage"
	"gopkg.in/eapache/queue.v1"
)

// Source provides the current in-memory state of entities at drain time
type Source interface {
	Lookup(key entity.Key) *entity.Entity
}

// Saver writes entity fields to the durable store asynchronously
type Saver interface {
	Save(key entity.Key, fields entity.Fields, callback storage.SaveCallbackFunc)
}

// Config configures the drain of the queue
type Config struct {
	Interval         time.Duration
	MaxWritesPerTick int
}

type dirtyEntry struct {
	key      entity.Key
	seq      uint64 // sequence of the latest MarkDirty
	savedSeq uint64 // sequence covered by the latest successful write
	inflight int
	queued   bool
}

// Queue is the write-behind queue of dirty persistent entities
//
// Keys are coalesced: marking a key N times before a drain produces one write,
// and the write carries the fields the entity has when the drain runs.
// A failed write leaves the key dirty so the next drain retries it.
type Queue struct {
	source Source
	saver  Saver
	config Config

	lock    sync.Mutex
	entries map[entity.Key]*dirtyEntry
	order   *queue.Queue // keys waiting for a write, in FIFO order
	nextSeq uint64

	drainTimer *timer.Timer
}

// NewQueue creates the persistence queue
func NewQueue(source Source, saver Saver, config Config) *Queue {
	if config.MaxWritesPerTick <= 0 {
		config.MaxWritesPerTick = consts.DEFAULT_MAX_WRITES_PER_TICK
	}
	if config.Interval <= 0 {
		config.Interval = consts.DEFAULT_SAVE_INTERVAL
	}
	return &Queue{
		source:  source,
		saver:   saver,
		config:  config,
		entries: map[entity.Key]*dirtyEntry{},
		order:   queue.New(),
	}
}

// Start drains the queue every interval on the timer routine
func (q *Queue) Start() {
	if q.drainTimer != nil {
		return
	}
	gwlog.Infof("Persistence queue started: interval=%s, max writes per tick=%d", q.config.Interval, q.config.MaxWritesPerTick)
	q.drainTimer = timer.AddTimer(q.config.Interval, q.Tick)
}

// Stop stops the periodic drain
func (q *Queue) Stop() {
	if q.drainTimer != nil {
		q.drainTimer.Cancel()
		q.drainTimer = nil
	}
}

// MarkDirty records that the entity of key needs to be written
func (q *Queue) MarkDirty(key entity.Key) {
	if key.IsShared() {
		gwlog.Warnf("Persistence queue: %s is Shared and never persisted", key)
		return
	}

	q.lock.Lock()
	q.nextSeq += 1
	entry := q.entries[key]
	if entry == nil {
		entry = &dirtyEntry{key: key}
		q.entries[key] = entry
	}
	entry.seq = q.nextSeq
	if !entry.queued && entry.inflight == 0 {
		q.enqueueLocked(entry)
	}
	n := len(q.entries)
	q.lock.Unlock()
	opmon.PersistenceDirty.Set(float64(n))
}

func (q *Queue) enqueueLocked(entry *dirtyEntry) {
	entry.queued = true
	q.order.Add(entry.key)
}

// IsDirty returns if the key waits for a write or has a write in flight
func (q *Queue) IsDirty(key entity.Key) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.entries[key] != nil
}

// Len returns the number of dirty keys
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.entries)
}

// Inflight returns the number of keys with writes in flight
func (q *Queue) Inflight() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	n := 0
	for _, entry := range q.entries {
		if entry.inflight > 0 {
			n += 1
		}
	}
	return n
}

type writeRequest struct {
	key       entity.Key
	issuedSeq uint64
}

// Tick drains at most MaxWritesPerTick keys, the rest waits for the next tick
func (q *Queue) Tick() {
	batch := q.takeBatch(q.config.MaxWritesPerTick)
	if consts.DEBUG_SAVE_LOAD && len(batch) > 0 {
		gwlog.Debugf("Persistence queue: writing %d keys, %d dirty", len(batch), q.Len())
	}
	for _, req := range batch {
		q.issue(req)
	}
}

func (q *Queue) takeBatch(budget int) []writeRequest {
	q.lock.Lock()
	defer q.lock.Unlock()

	var batch []writeRequest
	for len(batch) < budget && q.order.Length() > 0 {
		key := q.order.Remove().(entity.Key)
		entry := q.entries[key]
		if entry == nil || !entry.queued {
			continue
		}
		entry.queued = false
		if entry.inflight > 0 {
			// flushed meanwhile, completion re-queues it if needed
			continue
		}
		batch = append(batch, q.beginWriteLocked(entry))
	}
	return batch
}

func (q *Queue) beginWriteLocked(entry *dirtyEntry) writeRequest {
	entry.inflight += 1
	return writeRequest{key: entry.key, issuedSeq: entry.seq}
}

// Flush writes the key immediately if it is dirty, it returns false if the key is clean
func (q *Queue) Flush(key entity.Key) bool {
	q.lock.Lock()
	entry := q.entries[key]
	if entry == nil {
		q.lock.Unlock()
		return false
	}
	req := q.beginWriteLocked(entry)
	q.lock.Unlock()

	q.issue(req)
	return true
}

// FlushAll writes every dirty key without write budget, used when the server stops
func (q *Queue) FlushAll() int {
	q.lock.Lock()
	var batch []writeRequest
	for _, entry := range q.entries {
		if entry.inflight == 0 {
			entry.queued = false
			batch = append(batch, q.beginWriteLocked(entry))
		}
	}
	q.lock.Unlock()

	gwlog.Infof("Persistence queue: flushing %d dirty keys", len(batch))
	for _, req := range batch {
		q.issue(req)
	}
	return len(batch)
}

func (q *Queue) issue(req writeRequest) {
	e := q.source.Lookup(req.key)
	if e == nil {
		gwlog.Warnf("Persistence queue: %s was removed before it was written, dropping its unsaved mutations", req.key)
		q.lock.Lock()
		if entry := q.entries[req.key]; entry != nil {
			entry.inflight -= 1
			if entry.inflight == 0 {
				delete(q.entries, req.key)
			}
		}
		q.lock.Unlock()
		opmon.PersistenceWrites.WithLabelValues("dropped").Inc()
		return
	}

	snap := e.Snapshot()
	q.saver.Save(req.key, snap.Fields, func(err error) {
		q.onWritten(req, e, snap.Seq, err)
	})
}

func (q *Queue) onWritten(req writeRequest, e *entity.Entity, entitySeq uint64, err error) {
	if err != nil {
		gwlog.Errorf("Persistence queue: write %s failed, will retry: %s", req.key, err)
		opmon.PersistenceWrites.WithLabelValues("failed").Inc()
	} else {
		opmon.PersistenceWrites.WithLabelValues("ok").Inc()
		e.MarkPersisted(entitySeq)
	}

	q.lock.Lock()
	if entry := q.entries[req.key]; entry != nil {
		entry.inflight -= 1
		if err == nil && req.issuedSeq > entry.savedSeq {
			entry.savedSeq = req.issuedSeq
		}
		if entry.inflight == 0 {
			if entry.savedSeq >= entry.seq {
				delete(q.entries, req.key)
			} else if !entry.queued {
				// failed, or marked again while the write was in flight
				q.enqueueLocked(entry)
			}
		}
	}
	n := len(q.entries)
	q.lock.Unlock()
	opmon.PersistenceDirty.Set(float64(n))
}
