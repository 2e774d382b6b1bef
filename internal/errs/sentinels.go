package errs

// Sentinel errors for the boundary-visible failure taxonomy described in
// the design's error handling section. Hot paths never return these —
// they count and continue; these are returned only from boundary
// operations (pool.Add, locks.Acquire, Session.SendDirect, ...).
var (
	// ErrPoolCapacityExceeded is returned by Pool.Add when the pool is at MaxConnections.
	ErrPoolCapacityExceeded = New("pool: capacity exceeded")
	// ErrPoolNotRunning is returned by Pool.Add when the pool isn't in the running state.
	ErrPoolNotRunning = New("pool: not running")
	// ErrInvalidSession is returned by Pool.Add for a nil session.
	ErrInvalidSession = New("pool: invalid session")
	// ErrDuplicateSession is returned by Pool.Add when the id is already registered.
	ErrDuplicateSession = New("pool: duplicate session id")

	// ErrLockTimeout is returned when a guarded acquisition doesn't complete within its timeout.
	ErrLockTimeout = New("locks: acquisition timed out")
	// ErrLockOrderViolation is returned when acquiring a mutex would break the global level order.
	ErrLockOrderViolation = New("locks: order violation")

	// ErrSessionClosed is returned by session sends once the session has transitioned to closed.
	ErrSessionClosed = New("session: closed")
	// ErrSessionNotFound is returned when an operation targets an unknown session id.
	ErrSessionNotFound = New("session: not found")
	// ErrCircuitOpen is returned by circuit-breaker-guarded operations while the breaker is open.
	ErrCircuitOpen = New("session: circuit breaker open")
	// ErrReconnectAbandoned is returned once a session exceeds its max reconnect attempts.
	ErrReconnectAbandoned = New("session: reconnect attempts exhausted")

	// ErrQueueFull is returned by the broadcaster when a publish is dropped for lack of room.
	ErrQueueFull = New("broadcaster: queue full")
	// ErrBroadcasterNotRunning names a publish to a stopped broadcaster.
	// Broadcaster.Publish does not check run state and never returns it.
	ErrBroadcasterNotRunning = New("broadcaster: not running")

	// ErrInvalidConfig is returned by configuration validation at startup.
	ErrInvalidConfig = New("config: invalid")

	// ErrCacheDisabled names an operation on a disabled cache. cache.Manager
	// has no disabled state and none of its operations return it.
	ErrCacheDisabled = New("cache: disabled")
)
