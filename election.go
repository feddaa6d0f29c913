package raft

import "fmt"

// This file implements the Election component (§4.3): vote request
// construction, vote tallying, and election timeout randomization.
// The randomization itself lives in rand.go / role.go; this file
// holds the protocol logic that consumes it.

// broadcastRequestVote sends a RequestVote to every other voting
// server in the active configuration.
func (r *Raft) broadcastRequestVote() {
	req := RequestVote{
		Term:         r.currentTerm,
		CandidateID:  r.id,
		LastLogIndex: r.log.LastIndex(),
		LastLogTerm:  r.log.LastTerm(),
	}
	for _, s := range r.config.Servers() {
		if s.ID == r.id || !s.Voting {
			continue
		}
		r.send(s, Message{RequestVote: &req})
	}
}

// maybeWinElection checks whether cs already holds enough votes to
// win outright — the sole-voter "self elect" case, where becomeLeader
// must run within the same becomeCandidate call rather than waiting
// for a RequestVoteResult that will never arrive.
func (r *Raft) maybeWinElection(cs *candidateState) error {
	if len(cs.votesGranted) >= r.config.Quorum() {
		return r.becomeLeader()
	}
	return nil
}

// logUpToDate reports whether (lastTerm, lastIndex) — the candidate's
// claimed log position — is at least as up-to-date as ours, per the
// lexicographic comparison of §4.3.
func (r *Raft) logUpToDate(lastTerm, lastIndex uint64) bool {
	ourTerm := r.log.LastTerm()
	ourIndex := r.log.LastIndex()
	if lastTerm != ourTerm {
		return lastTerm > ourTerm
	}
	return lastIndex >= ourIndex
}

// handleRequestVote implements the receiver rules of §4.3. It may be
// called while Follower, Candidate, or Leader.
func (r *Raft) handleRequestVote(req RequestVote) (RequestVoteResult, error) {
	if req.Term < r.currentTerm {
		return RequestVoteResult{Term: r.currentTerm, Granted: false}, nil
	}

	if req.Term > r.currentTerm {
		if err := r.stepDown(req.Term, 0); err != nil {
			return RequestVoteResult{}, err
		}
	}

	self, eligible := r.config.Get(r.id)
	canGrant := (r.votedFor == 0 || r.votedFor == req.CandidateID) &&
		r.logUpToDate(req.LastLogTerm, req.LastLogIndex) &&
		eligible && self.Voting

	if !canGrant {
		return RequestVoteResult{Term: r.currentTerm, Granted: false}, nil
	}

	r.votedFor = req.CandidateID
	if err := r.io.SetVote(r.votedFor); err != nil {
		return RequestVoteResult{}, fmt.Errorf("%w: persist vote: %v", ErrIo, err)
	}
	if r.role == Follower {
		r.resetElectionTimer()
	}
	return RequestVoteResult{Term: r.currentTerm, Granted: true}, nil
}

// handleRequestVoteResult implements the tallying rules of §4.3. It
// is a no-op unless we are Candidate in the same term as the result.
func (r *Raft) handleRequestVoteResult(fromID uint64, res RequestVoteResult) error {
	if res.Term > r.currentTerm {
		return r.stepDown(res.Term, 0)
	}
	if r.role != Candidate || res.Term != r.currentTerm {
		return nil
	}
	if !res.Granted {
		return nil
	}
	cs := r.state.(*candidateState)
	cs.votesGranted[fromID] = struct{}{}
	return r.maybeWinElection(cs)
}

// resetElectionTimer zeroes the Follower or Candidate timer and
// re-samples its randomized timeout, per the reset conditions listed
// in §4.3 (accepted AppendEntries from the current leader, granted
// vote, or a fresh transition into the role).
func (r *Raft) resetElectionTimer() {
	switch st := r.state.(type) {
	case *followerState:
		st.timerMs = 0
		st.electionTimeoutRandMs = randomizedTimeoutMs(r.electionTimeout)
	case *candidateState:
		st.timerMs = 0
		st.electionTimeoutRandMs = randomizedTimeoutMs(r.electionTimeout)
	}
}
