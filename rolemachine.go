package raft

import "fmt"

// This file implements the RoleMachine component (§4.6's transition
// table): the only places a Raft instance's role field is written,
// so every invariant that must hold across a transition is enforced
// in exactly one place.

// becomeFollower transitions into Follower, resetting the election
// timer and randomizing the timeout. currentLeaderID may be 0 if the
// leader is not yet known (e.g. the Unavailable -> Follower startup
// transition, or a term bump from a vote request).
func (r *Raft) becomeFollower(currentLeaderID uint64) {
	r.role = Follower
	fs := newFollowerState(r.electionTimeout)
	fs.currentLeaderID = currentLeaderID
	r.state = fs
	r.logger.Infof("server %d: becoming follower (term=%d leader=%d)", r.id, r.currentTerm, currentLeaderID)
}

// becomeCandidate transitions Follower -> Candidate (or restarts an
// ongoing candidacy), incrementing the term, voting for self, and
// broadcasting RequestVote. Persistence of the term/vote bump happens
// before any RequestVote is dispatched, per the durability ordering
// guarantee of §4.6.
func (r *Raft) becomeCandidate() error {
	r.currentTerm++
	if err := r.io.SetTerm(r.currentTerm); err != nil {
		return fmt.Errorf("%w: persist term: %v", ErrIo, err)
	}
	r.votedFor = r.id
	if err := r.io.SetVote(r.votedFor); err != nil {
		return fmt.Errorf("%w: persist vote: %v", ErrIo, err)
	}

	cs := newCandidateState(r.electionTimeout)
	if self, ok := r.config.Get(r.id); ok && self.Voting {
		cs.votesGranted[r.id] = struct{}{}
	}
	r.role = Candidate
	r.state = cs
	r.logger.Infof("server %d: becoming candidate (term=%d)", r.id, r.currentTerm)

	r.broadcastRequestVote()

	return r.maybeWinElection(cs)
}

// becomeLeader transitions Candidate -> Leader: initializes per-peer
// progress, appends the term-anchoring no-op entry (§9), and sends an
// immediate heartbeat burst.
func (r *Raft) becomeLeader() error {
	r.role = Leader
	ls := newLeaderState(r.config, r.log.LastIndex()+1)
	r.state = ls
	r.logger.Infof("server %d: becoming leader (term=%d)", r.id, r.currentTerm)

	// Anchor commitment: a no-op of the new term lets the leader-
	// completeness commit rule (only current-term entries count
	// directly toward quorum) apply right away, rather than waiting for
	// the first client command.
	r.appendLocal(EntryNoop, nil)

	r.broadcastAppendEntries(ls)
	return nil
}

// becomeUnavailable transitions any role to Unavailable (explicit
// stop). No further Tick/Recv/Submit activity is expected, though the
// methods remain safe to call (they become no-ops).
func (r *Raft) becomeUnavailable() {
	r.role = Unavailable
	r.state = nil
	r.logger.Infof("server %d: becoming unavailable", r.id)
}

// stepDown is invoked whenever a higher term is observed from a peer.
// It persists the new term, clears the vote, and transitions to
// Follower — from any role, including Leader, per the transition
// table's "any -> Follower on higher term" rule (expressed as two
// rows: Candidate -> Follower and Leader -> Follower).
func (r *Raft) stepDown(term uint64, currentLeaderID uint64) error {
	r.currentTerm = term
	if err := r.io.SetTerm(term); err != nil {
		return fmt.Errorf("%w: persist term: %v", ErrIo, err)
	}
	r.votedFor = 0
	if err := r.io.SetVote(0); err != nil {
		return fmt.Errorf("%w: persist vote: %v", ErrIo, err)
	}
	r.becomeFollower(currentLeaderID)
	return nil
}
