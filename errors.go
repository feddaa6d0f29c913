package raft

import "errors"

// Sentinel errors returned by the core. Callers should use errors.Is,
// since collaborator packages wrap these with additional context.
var (
	// ErrNotLeader is returned by Submit and membership operations when
	// this server is not currently the leader.
	ErrNotLeader = errors.New("raft: not leader")

	// ErrShutdown indicates an invariant violation was detected (a
	// committed entry conflicts with an incoming AppendEntries). The
	// instance refuses further operations once in this state.
	ErrShutdown = errors.New("raft: shutdown: invariant violation")

	// ErrIo is returned when the I/O collaborator fails to load durable
	// state or to persist the term or vote. Failed log appends and
	// failed sends are logged and not returned to any caller.
	ErrIo = errors.New("raft: io error")

	// ErrDuplicateID is returned by Configuration.Add when the id is
	// already present in the roster.
	ErrDuplicateID = errors.New("raft: duplicate server id")

	// ErrNotFound is returned by Configuration operations and
	// membership-change requests that reference an unknown server id.
	ErrNotFound = errors.New("raft: server not found")

	// ErrBadRequest is returned when an inbound message is malformed or
	// of an unrecognized kind.
	ErrBadRequest = errors.New("raft: bad request")

	// ErrCommittedTruncation is returned by Log.TruncateSuffix when asked
	// to discard an entry at or below the commit index.
	ErrCommittedTruncation = errors.New("raft: refusing to truncate committed entry")

	// ErrPromotionInProgress is returned by Raft.PromoteServer when
	// another promotion is already underway.
	ErrPromotionInProgress = errors.New("raft: promotion already in progress")
)
