package storage

import (
	"context"
	"time"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
	"github.com/xiaonanln/gwscope/engine/post"
	"github.com/xiaonanln/gwscope/engine/storage/storage_common"
	"golang.org/x/time/rate"
)

const (
	_REOPEN_INTERVAL = time.Second
)

type saveRequest struct {
	Key      entity.Key
	Data     entity.Fields
	Callback SaveCallbackFunc
}

type loadRequest struct {
	Key      entity.Key
	Callback LoadCallbackFunc
}

type existsRequest struct {
	Key      entity.Key
	Callback ExistsCallbackFunc
}

type listRequest struct {
	TypeName string
	Owner    string
	Callback ListCallbackFunc
}

// SaveCallbackFunc is the callback type of storage Save
type SaveCallbackFunc func(err error)

// LoadCallbackFunc is the callback type of storage Load, data is nil if the key was never saved
type LoadCallbackFunc func(data entity.Fields, err error)

// ExistsCallbackFunc is the callback type of storage Exists
type ExistsCallbackFunc func(exists bool, err error)

// ListCallbackFunc is the callback type of storage List
type ListCallbackFunc func(instances []string, err error)

// Opener opens the storage backend, it is called again when the connection is lost
type Opener func() (storagecommon.EntityStorage, error)

// PostFunc runs callbacks on the main routine
type PostFunc func(f post.PostCallback)

// Service serializes all storage operations on one routine
//
// Operations are served in the order they are queued, so a load queued after a save
// of the same key observes the saved data. Writes may be throttled by a rate limiter;
// they are never retried by the service, the caller decides what to do with a failure.
type Service struct {
	opener         Opener
	storageEngine  storagecommon.EntityStorage
	operationQueue *xnsyncutil.SyncQueue
	terminated     *xnsyncutil.OneTimeCond
	writeLimiter   *rate.Limiter
	post           PostFunc

	recentWarnedQueueLen int
}

// NewService creates a storage service, writesPerSecond <= 0 disables write throttling
func NewService(opener Opener, writesPerSecond int, writeBurst int) *Service {
	limit := rate.Inf
	if writesPerSecond > 0 {
		limit = rate.Limit(writesPerSecond)
	}
	if writeBurst <= 0 {
		writeBurst = 1
	}
	return &Service{
		opener:         opener,
		operationQueue: xnsyncutil.NewSyncQueue(),
		terminated:     xnsyncutil.NewOneTimeCond(),
		writeLimiter:   rate.NewLimiter(limit, writeBurst),
		post:           post.Post,
	}
}

// SetPostFunc sets how callbacks are delivered, post.Post by default
func (s *Service) SetPostFunc(f PostFunc) {
	s.post = f
}

// Save saves entity data to storage
func (s *Service) Save(key entity.Key, data entity.Fields, callback SaveCallbackFunc) {
	s.operationQueue.Push(saveRequest{
		Key:      key,
		Data:     data,
		Callback: callback,
	})
	s.checkOperationQueueLen()
}

// Load loads entity data from storage
func (s *Service) Load(key entity.Key, callback LoadCallbackFunc) {
	s.operationQueue.Push(loadRequest{
		Key:      key,
		Callback: callback,
	})
	s.checkOperationQueueLen()
}

// Exists checks if entity of specified key exists in storage
func (s *Service) Exists(key entity.Key, callback ExistsCallbackFunc) {
	s.operationQueue.Push(existsRequest{
		Key:      key,
		Callback: callback,
	})
	s.checkOperationQueueLen()
}

// List returns the instance keys of the Multi entities of owner
func (s *Service) List(typeName string, owner string, callback ListCallbackFunc) {
	s.operationQueue.Push(listRequest{
		TypeName: typeName,
		Owner:    owner,
		Callback: callback,
	})
	s.checkOperationQueueLen()
}

// QueueLen returns the number of pending operations
func (s *Service) QueueLen() int {
	return s.operationQueue.Len()
}

func (s *Service) checkOperationQueueLen() {
	qlen := s.operationQueue.Len()
	if qlen > consts.STORAGE_QUEUE_WARN_LEN && qlen%consts.STORAGE_QUEUE_WARN_LEN == 0 && s.recentWarnedQueueLen != qlen {
		gwlog.Warnf("Storage operation queue length = %d", qlen)
		s.recentWarnedQueueLen = qlen
	}
}

// Start opens the backend and starts the storage routine
func (s *Service) Start() error {
	if err := s.assureStorageEngineReady(); err != nil {
		return err
	}
	go s.storageRoutine()
	return nil
}

// Shutdown serves all queued operations, then closes the backend
func (s *Service) Shutdown() {
	s.operationQueue.Close()
	s.terminated.Wait()
}

func (s *Service) assureStorageEngineReady() (err error) {
	if s.storageEngine != nil {
		return
	}
	s.storageEngine, err = s.opener()
	return
}

func (s *Service) storageRoutine() {
	defer func() {
		err := recover()
		if err != nil {
			gwlog.TraceError("storage routine paniced: %s, restarting ...", err)
			go s.storageRoutine() // restart the storage routine
		} else {
			// normal quit
			if s.storageEngine != nil {
				s.storageEngine.Close()
			}
			s.terminated.Signal()
		}
	}()

	for {
		op := s.operationQueue.Pop()
		if op == nil { // storage closed
			break
		}

		for {
			err := s.assureStorageEngineReady()
			if err == nil {
				break
			}
			gwlog.Errorf("Storage engine is not ready: %s", err)
			time.Sleep(_REOPEN_INTERVAL)
		}

		s.serve(op)
	}
}

func (s *Service) serve(op interface{}) {
	var err error
	switch req := op.(type) {
	case saveRequest:
		if err = s.writeLimiter.Wait(context.Background()); err != nil {
			gwlog.Errorf("storage: write limiter failed: %s", err)
		}
		if consts.DEBUG_SAVE_LOAD {
			gwlog.Debugf("storage: SAVING %s ...", req.Key)
		}
		monop := opmon.StartOperation("storage.save")
		err = s.storageEngine.Write(req.Key, req.Data)
		monop.Finish(consts.STORAGE_OP_WARN_THRESHOLD)
		if err != nil {
			gwlog.Errorf("storage: save %s failed: %s", req.Key, err)
		}
		if req.Callback != nil {
			saveErr := err
			s.post(func() {
				req.Callback(saveErr)
			})
		}
	case loadRequest:
		if consts.DEBUG_SAVE_LOAD {
			gwlog.Debugf("storage: LOADING %s ...", req.Key)
		}
		monop := opmon.StartOperation("storage.load")
		var data entity.Fields
		data, err = s.storageEngine.Read(req.Key)
		monop.Finish(consts.STORAGE_OP_WARN_THRESHOLD)
		if err != nil {
			gwlog.Errorf("storage: load %s failed: %s", req.Key, err)
			data = nil
		}
		if req.Callback != nil {
			loadErr := err
			s.post(func() {
				req.Callback(data, loadErr)
			})
		}
	case existsRequest:
		monop := opmon.StartOperation("storage.exists")
		var exists bool
		exists, err = s.storageEngine.Exists(req.Key)
		monop.Finish(consts.STORAGE_OP_WARN_THRESHOLD)
		if req.Callback != nil {
			existsErr := err
			s.post(func() {
				req.Callback(exists, existsErr)
			})
		}
	case listRequest:
		monop := opmon.StartOperation("storage.list")
		var instances []string
		instances, err = s.storageEngine.List(req.TypeName, req.Owner)
		monop.Finish(consts.STORAGE_OP_WARN_THRESHOLD * 10)
		if err != nil {
			gwlog.Errorf("storage: list %s of %s failed: %s", req.TypeName, req.Owner, err)
		}
		if req.Callback != nil {
			listErr := err
			s.post(func() {
				req.Callback(instances, listErr)
			})
		}
	default:
		gwlog.Panicf("storage: unknown operation: %v", op)
	}

	if err != nil && s.storageEngine.IsEOF(err) {
		gwlog.Warnf("storage: connection lost, reopening")
		s.storageEngine.Close()
		s.storageEngine = nil
	}
}
