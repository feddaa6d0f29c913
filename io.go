package raft

// Status is the outcome of an asynchronous I/O operation dispatched
// to the collaborator.
type Status int

const (
	// StatusOK indicates the operation completed successfully.
	StatusOK Status = iota
	// StatusError indicates a transient failure (ErrIo at the core
	// boundary). Appends and sends may be retried by the caller; the
	// core itself never retries a send; Replication will issue a new
	// one on the next heartbeat or repair.
	StatusError
)

// Message is the envelope wrapping one of the four wire payloads
// below, tagged with the sender's identity for routing and logging.
type Message struct {
	ServerID      uint64
	ServerAddress string

	RequestVote         *RequestVote
	RequestVoteResult   *RequestVoteResult
	AppendEntries       *AppendEntries
	AppendEntriesResult *AppendEntriesResult
}

// RequestVote is the vote-solicitation RPC sent by a candidate.
type RequestVote struct {
	Term         uint64
	CandidateID  uint64
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteResult is the response to a RequestVote.
type RequestVoteResult struct {
	Term    uint64
	Granted bool
}

// AppendEntries is the replication/heartbeat RPC sent by a leader.
type AppendEntries struct {
	Term         uint64
	LeaderID     uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	LeaderCommit uint64
}

// AppendEntriesResult is the response to an AppendEntries.
type AppendEntriesResult struct {
	Term         uint64
	Success      bool
	LastLogIndex uint64
}

// Io is the pluggable I/O collaborator the core depends on for durable
// persistence and network delivery; committed commands go to the
// StateMachine instead. Completions arrive back into the core through
// the done callbacks passed to Append and Send, which must be invoked
// from the same single-goroutine driver loop as Tick/Recv/Submit.
type Io interface {
	// Load returns the durable (term, votedFor, startIndex, entries)
	// tuple at startup. Called exactly once, before Start.
	Load() (term uint64, votedFor uint64, startIndex uint64, entries []Entry, err error)

	// Bootstrap initializes a pristine store with a single
	// Configuration entry at index 1, term 1.
	Bootstrap(cfg *Configuration) error

	// SetTerm durably persists the current term.
	SetTerm(term uint64) error

	// SetVote durably persists the candidate voted for in the current
	// term (0 means none).
	SetVote(id uint64) error

	// Append durably appends entries, invoking done with the
	// completion status once they are safely on disk. The callback is
	// the signal the core uses to advance its own match index.
	Append(entries []Entry, done func(Status))

	// TruncateSuffix durably discards every persisted entry at or
	// above index, mirroring a Log.TruncateSuffix repair so the
	// durable tail never diverges from the in-memory log after a
	// conflict truncation.
	TruncateSuffix(index uint64) error

	// Send delivers msg to the given destination server, invoking done
	// with the outcome. Failures are non-fatal and surfaced via
	// done(StatusError); msg.ServerID/ServerAddress identify the
	// sender (us), not the destination.
	Send(to Server, msg Message, done func(Status))

	// Start begins the collaborator's background activity: a timer
	// driving tickCb at roughly tickMs intervals, and a receiver
	// invoking recvCb for inbound messages.
	Start(id uint64, address string, tickMs uint64, tickCb func(elapsedMs uint64), recvCb func(Message)) error

	// Stop halts background activity, invoking done once quiesced.
	Stop(done func())

	// Close releases any resources held by the collaborator.
	Close() error
}

// Logger is the leveled logging capability the core accepts. New
// installs a no-op logger when Options.Logger is nil, so logging is
// never required for correctness.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
