package raft

import "time"

// Role is one of the four server roles in the Raft state machine.
type Role int

const (
	Unavailable Role = iota
	Follower
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Unavailable:
		return "Unavailable"
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// roleState is implemented by exactly one of *followerState,
// *candidateState, *leaderState (or nil, for Unavailable), so that a
// field only meaningful to one role is unrepresentable in another —
// per the "tagged variant" design note (§9).
type roleState interface {
	role() Role
}

// followerState is held while Role == Follower.
type followerState struct {
	currentLeaderID       uint64 // 0 if none known
	timerMs               uint64
	electionTimeoutRandMs uint64
}

func (*followerState) role() Role { return Follower }

// candidateState is held while Role == Candidate.
type candidateState struct {
	votesGranted          map[uint64]struct{}
	timerMs               uint64
	electionTimeoutRandMs uint64
}

func (*candidateState) role() Role { return Candidate }

// peerProgress tracks one follower's replication position from the
// leader's point of view.
type peerProgress struct {
	nextIndex  uint64
	matchIndex uint64
}

// leaderState is held while Role == Leader.
type leaderState struct {
	progress map[uint64]*peerProgress
	timerMs  uint64

	// Membership-change (promotion) fields, all zero when no
	// promotion is in progress.
	promoteeID     uint64
	roundNumber    int
	roundIndex     uint64
	roundDurationMs uint64
}

func (*leaderState) role() Role { return Leader }

func newFollowerState(electionTimeout time.Duration) *followerState {
	return &followerState{electionTimeoutRandMs: randomizedTimeoutMs(electionTimeout)}
}

func newCandidateState(electionTimeout time.Duration) *candidateState {
	return &candidateState{
		votesGranted:          map[uint64]struct{}{},
		electionTimeoutRandMs: randomizedTimeoutMs(electionTimeout),
	}
}

func newLeaderState(cfg *Configuration, nextIndex uint64) *leaderState {
	ls := &leaderState{progress: map[uint64]*peerProgress{}}
	for _, s := range cfg.Servers() {
		ls.progress[s.ID] = &peerProgress{nextIndex: nextIndex, matchIndex: 0}
	}
	return ls
}
