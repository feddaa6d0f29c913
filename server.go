package raft

import (
	"fmt"
	"time"
)

// StateMachine is the user-domain collaborator committed Command
// entries are delivered to, in strictly increasing index order.
// Configuration and Noop entries are never delivered here; they are
// handled internally by the core.
type StateMachine interface {
	Apply(index uint64, data []byte) ([]byte, error)
}

// Observer receives out-of-band notifications the core has no other
// channel for, such as an aborted promotion.
type Observer interface {
	PromotionAborted(serverID uint64)
}

type nopObserver struct{}

func (nopObserver) PromotionAborted(uint64) {}

// Options configures a new Raft instance. ElectionTimeout and
// HeartbeatTimeout are required; the remainder default per §6.
type Options struct {
	ID                  uint64
	Address             string
	ElectionTimeout     time.Duration
	HeartbeatTimeout    time.Duration
	MaxCatchUpDuration  time.Duration // default 30s
	MaxRounds           int           // default 10
	Logger              Logger
	Observer            Observer
}

const (
	DefaultMaxCatchUpDuration = 30 * time.Second
	DefaultMaxRounds          = 10
)

// Raft is the consensus core: a single-threaded, I/O-agnostic
// decision engine. All state lives here, owned exclusively by the
// instance; the three entry points below (Tick, Recv, Submit) — plus
// the Io completion callbacks threaded through them — are mutually
// exclusive and must be invoked from one driver goroutine (§5).
type Raft struct {
	id      uint64
	address string
	io      Io
	logger  Logger
	observer Observer

	electionTimeout    time.Duration
	heartbeatTimeout   time.Duration
	maxCatchUpDuration time.Duration
	maxRounds          int

	currentTerm uint64
	votedFor    uint64
	log         *Log
	commitIndex uint64
	lastApplied uint64
	config      *Configuration
	fsm         StateMachine

	role  Role
	state roleState

	shutdown bool
}

// New constructs an unstarted Raft instance. fsm may be nil if the
// caller only wants replication without application (e.g. a pure
// membership relay); committed Command entries are then dropped.
func New(opts Options, fsm StateMachine) (*Raft, error) {
	if opts.ElectionTimeout <= 0 || opts.HeartbeatTimeout <= 0 {
		return nil, fmt.Errorf("raft: election and heartbeat timeouts must be positive")
	}
	if opts.HeartbeatTimeout >= opts.ElectionTimeout {
		return nil, fmt.Errorf("raft: heartbeat timeout must be less than election timeout")
	}
	maxCatchUp := opts.MaxCatchUpDuration
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUpDuration
	}
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Raft{
		id:                 opts.ID,
		address:            opts.Address,
		logger:             logger,
		observer:           observer,
		electionTimeout:    opts.ElectionTimeout,
		heartbeatTimeout:   opts.HeartbeatTimeout,
		maxCatchUpDuration: maxCatchUp,
		maxRounds:          maxRounds,
		role:               Unavailable,
		fsm:                fsm,
	}, nil
}

// Bind attaches the I/O collaborator and loads durable state. Must be
// called once, before any other entry point, and completes the
// Unavailable -> Follower transition of §4.6's role-transition table.
func (r *Raft) Bind(io Io, cfg *Configuration) error {
	r.io = io
	term, votedFor, startIndex, entries, err := io.Load()
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrIo, err)
	}
	r.currentTerm = term
	r.votedFor = votedFor
	r.log = LoadLog(startIndex, entries)
	r.config = cfg
	r.becomeFollower(0)
	return nil
}

// Role reports the current role.
func (r *Raft) Role() Role { return r.role }

// Term reports the current term.
func (r *Raft) Term() uint64 { return r.currentTerm }

// CommitIndex reports the highest index known committed.
func (r *Raft) CommitIndex() uint64 { return r.commitIndex }

// LeaderID reports our own id while Leader, the last known leader id
// while Follower, and 0 otherwise (Candidate, Unavailable, or a
// Follower with no known leader).
func (r *Raft) LeaderID() uint64 {
	switch r.role {
	case Leader:
		return r.id
	case Follower:
		return r.state.(*followerState).currentLeaderID
	default:
		return 0
	}
}

// checkShutdown returns ErrShutdown if an invariant violation was
// previously detected, refusing further operations.
func (r *Raft) checkShutdown() error {
	if r.shutdown {
		return ErrShutdown
	}
	return nil
}

// fatal marks the instance shut down due to an invariant violation
// and logs a diagnostic dump, per the "conflict-on-committed
// diagnosis" open question of §9: this is treated as a panic-
// equivalent rather than a recoverable error.
func (r *Raft) fatal(format string, args ...interface{}) error {
	r.shutdown = true
	r.logger.Warnf("FATAL invariant violation, shutting down: "+format, args...)
	return ErrShutdown
}

func randomizedTimeoutMs(base time.Duration) uint64 {
	n := pseudoRandomMs(uint64(base / time.Millisecond))
	return uint64(base/time.Millisecond) + n
}

// send dispatches one outbound message to a peer, best-effort. Send
// failures are logged and otherwise ignored: the next heartbeat or
// repair cycle will retry (§7).
func (r *Raft) send(to Server, msg Message) {
	msg.ServerID = r.id
	msg.ServerAddress = r.address
	r.io.Send(to, msg, func(st Status) {
		if st != StatusOK {
			r.logger.Warnf("server %d: send to %d failed", r.id, to.ID)
		}
	})
}

// appendLocal appends one entry to the local log and durably persists
// it, advancing our own match index (if leader) once the append
// completes. It does not itself trigger replication; callers invoke
// broadcastAppendEntries or rely on the next heartbeat.
func (r *Raft) appendLocal(typ EntryType, data []byte) uint64 {
	index := r.log.Append(r.currentTerm, typ, data, nil)
	entry, _ := r.log.EntryAt(index)
	r.io.Append([]Entry{entry}, func(st Status) {
		if st != StatusOK {
			r.logger.Warnf("server %d: local append of index %d failed to persist", r.id, index)
			return
		}
		if r.role == Leader {
			if ls, ok := r.state.(*leaderState); ok {
				r.advanceMatchIndex(ls, r.id, index)
			}
		}
	})
	return index
}
