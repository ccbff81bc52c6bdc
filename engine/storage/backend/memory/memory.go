package entitystoragememory

import (
	"sort"
	"sync"

	"github.com/xiaonanln/gwscope/engine/entity"
)

// WriteRecord is one write received by the storage
type WriteRecord struct {
	Key    entity.Key
	Fields entity.Fields
}

// Storage keeps entities in memory, it is used by tests and by servers without durable storage
//
// Reads and writes can be made to fail to exercise error paths.
type Storage struct {
	lock      sync.Mutex
	data      map[entity.Key]entity.Fields
	writes    []WriteRecord
	readErrs  map[entity.Key]error
	readErr   error
	writeErr  error
	listErr   error
	closed    bool
	readCount int
}

// Open creates an empty memory storage
func Open() *Storage {
	return &Storage{
		data:     map[entity.Key]entity.Fields{},
		readErrs: map[entity.Key]error{},
	}
}

// Put stores fields without recording a write
func (ms *Storage) Put(key entity.Key, fields entity.Fields) {
	ms.lock.Lock()
	ms.data[key] = fields.Clone()
	ms.lock.Unlock()
}

// Get returns the stored fields of key, nil if absent
func (ms *Storage) Get(key entity.Key) entity.Fields {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return ms.data[key].Clone()
}

// FailRead makes reads of key return err, nil err clears it
func (ms *Storage) FailRead(key entity.Key, err error) {
	ms.lock.Lock()
	if err == nil {
		delete(ms.readErrs, key)
	} else {
		ms.readErrs[key] = err
	}
	ms.lock.Unlock()
}

// FailReads makes all reads return err, nil err clears it
func (ms *Storage) FailReads(err error) {
	ms.lock.Lock()
	ms.readErr = err
	ms.lock.Unlock()
}

// FailWrites makes all writes return err, nil err clears it
func (ms *Storage) FailWrites(err error) {
	ms.lock.Lock()
	ms.writeErr = err
	ms.lock.Unlock()
}

// FailLists makes all lists return err, nil err clears it
func (ms *Storage) FailLists(err error) {
	ms.lock.Lock()
	ms.listErr = err
	ms.lock.Unlock()
}

// Writes returns all successful writes in order
func (ms *Storage) Writes() []WriteRecord {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return append([]WriteRecord(nil), ms.writes...)
}

// WritesOf returns the successful writes of one key in order
func (ms *Storage) WritesOf(key entity.Key) []WriteRecord {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	var res []WriteRecord
	for _, w := range ms.writes {
		if w.Key == key {
			res = append(res, w)
		}
	}
	return res
}

// ReadCount returns the number of reads served
func (ms *Storage) ReadCount() int {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return ms.readCount
}

// IsClosed returns if Close was called
func (ms *Storage) IsClosed() bool {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return ms.closed
}

func (ms *Storage) Write(key entity.Key, data entity.Fields) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if ms.writeErr != nil {
		return ms.writeErr
	}
	fields := data.Clone()
	if fields == nil {
		fields = entity.Fields{}
	}
	ms.data[key] = fields
	ms.writes = append(ms.writes, WriteRecord{Key: key, Fields: fields.Clone()})
	return nil
}

func (ms *Storage) Read(key entity.Key) (entity.Fields, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.readCount += 1
	if err := ms.readErrs[key]; err != nil {
		return nil, err
	}
	if ms.readErr != nil {
		return nil, ms.readErr
	}
	return ms.data[key].Clone(), nil
}

func (ms *Storage) Exists(key entity.Key) (bool, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	_, ok := ms.data[key]
	return ok, nil
}

func (ms *Storage) List(typeName string, owner string) ([]string, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if ms.listErr != nil {
		return nil, ms.listErr
	}
	var res []string
	for key := range ms.data {
		if key.TypeName == typeName && key.Owner == owner && key.Instance != "" {
			res = append(res, key.Instance)
		}
	}
	sort.Strings(res)
	return res, nil
}

func (ms *Storage) Close() {
	ms.lock.Lock()
	ms.closed = true
	ms.lock.Unlock()
}

func (ms *Storage) IsEOF(err error) bool {
	return false
}
