package consts

import "time"

// Tunable Options
const (
	// For Game Service
	// GAME_SERVICE_EVENT_QUEUE_SIZE is the max event queue length for game service
	GAME_SERVICE_EVENT_QUEUE_SIZE = 10000
	// GAME_SERVICE_TICK_INTERVAL is the tick interval to tick timers in game service
	GAME_SERVICE_TICK_INTERVAL = time.Millisecond * 10 // server tick interval => affect timer resolution

	// For Client Proxies
	// CLIENT_PROXY_WRITE_BUFFER_SIZE is the write buffer size for client proxies
	CLIENT_PROXY_WRITE_BUFFER_SIZE = 1024 * 1024
	// CLIENT_PROXY_READ_BUFFER_SIZE is the read buffer size for client proxies
	CLIENT_PROXY_READ_BUFFER_SIZE = 1024 * 1024
	// CLIENT_PROXY_SET_TCP_NO_DELAY = true sets client proxies to TcpNoDelay
	CLIENT_PROXY_SET_TCP_NO_DELAY = true
	// CLIENT_LOGIN_TIMEOUT is the time a new client has to send its login message
	CLIENT_LOGIN_TIMEOUT = time.Second * 10
	// CLIENT_PROXY_READ_TIMEOUT closes client connections that send nothing (not even heartbeats) for this long
	CLIENT_PROXY_READ_TIMEOUT = time.Second * 60
	// CLIENT_PROXY_CHECK_INTERVAL is the interval of checking login and read timeouts of clients
	CLIENT_PROXY_CHECK_INTERVAL = time.Second
	// CLIENT_PROXY_TERMINATE_DELAY is the time given to the terminate message to be flushed before the client is closed
	CLIENT_PROXY_TERMINATE_DELAY = time.Millisecond * 500

	// For Messages
	// MAX_MESSAGE_SIZE is the max size of one message on the wire
	MAX_MESSAGE_SIZE = 25 * 1024 * 1024
	// MESSAGE_RECV_QUEUE_SIZE is the number of received packets waiting to be unpacked
	MESSAGE_RECV_QUEUE_SIZE = 100
	// BUFFERED_READ_BUFFSIZE is the read buffer size of message connections
	BUFFERED_READ_BUFFSIZE = 16384
	// BUFFERED_WRITE_BUFFSIZE is the write buffer size of message connections
	BUFFERED_WRITE_BUFFSIZE = 16384

	// For Persistence
	// DEFAULT_SAVE_INTERVAL is the default interval between two drains of the persistence queue
	DEFAULT_SAVE_INTERVAL = time.Second * 5
	// DEFAULT_MAX_WRITES_PER_TICK is the default number of keys written per drain
	DEFAULT_MAX_WRITES_PER_TICK = 100
	// DEFAULT_WRITES_PER_SECOND is the default write rate of storage routine, 0 means unlimited
	DEFAULT_WRITES_PER_SECOND = 1000
	// DEFAULT_WRITE_BURST is the default write burst of storage routine
	DEFAULT_WRITE_BURST = 100

	// For Sessions
	// DEFAULT_LOAD_TIMEOUT is the default time a session has to load all its entities
	DEFAULT_LOAD_TIMEOUT = time.Second * 30

	// For Dispatch
	// DISPATCH_WARN_THRESHOLD is the duration of action handlers to start warning
	DISPATCH_WARN_THRESHOLD = time.Millisecond * 50

	// For Storage
	// STORAGE_QUEUE_WARN_LEN is the storage operation queue length to start warning
	STORAGE_QUEUE_WARN_LEN = 100
	// STORAGE_OP_WARN_THRESHOLD is the duration of storage operations to start warning
	STORAGE_OP_WARN_THRESHOLD = time.Millisecond * 100

	// For Operation Monitor
	// OPMON_DUMP_INTERVAL is the interval to print opmon infos to output
	OPMON_DUMP_INTERVAL = 0
	// PROCESS_STATS_INTERVAL is the interval to sample process cpu & memory
	PROCESS_STATS_INTERVAL = time.Second * 10
)

// Debug Options
const (
	// DEBUG_PACKETS prints message send/recv debug logs
	DEBUG_PACKETS = false
	// DEBUG_SAVE_LOAD prints save & load debug logs
	DEBUG_SAVE_LOAD = false
	// DEBUG_CLIENTS prints clients operation debug logs
	DEBUG_CLIENTS = false
	// DEBUG_SESSIONS prints session state transitions
	DEBUG_SESSIONS = false
	// DEBUG_REPLICATION prints every delivered snapshot
	DEBUG_REPLICATION = false
	// DEBUG_DISPATCH prints every dispatched action
	DEBUG_DISPATCH = false
)

// System level configurations
const (
	// DEBUG_MODE = true turns on debug mode
	DEBUG_MODE = false
)
