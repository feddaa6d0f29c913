package raft

// This file implements the Tick component (§4.5): the time-driven
// dispatcher for election timeouts, heartbeats, and the promotion
// watchdog.

// Tick advances the instance's internal clock by elapsedMs and
// applies whatever time-dependent transition follows, per the
// per-role rules of §4.5. It is one of the three mutually exclusive
// entry points (§5) and must never be called concurrently with Recv
// or Submit.
func (r *Raft) Tick(elapsedMs uint64) error {
	if err := r.checkShutdown(); err != nil {
		return err
	}
	if r.role == Unavailable {
		return nil
	}

	switch st := r.state.(type) {
	case *followerState:
		st.timerMs += elapsedMs
		return r.tickFollower(st)
	case *candidateState:
		st.timerMs += elapsedMs
		return r.tickCandidate(st)
	case *leaderState:
		return r.tickLeader(st, elapsedMs)
	default:
		return nil
	}
}

func (r *Raft) tickFollower(st *followerState) error {
	self, ok := r.config.Get(r.id)
	if !ok {
		// Not (yet, or no longer) part of the configuration: wait for
		// RPCs rather than attempting to elect.
		return nil
	}

	if r.config.NVoting() == 1 {
		if self.Voting {
			r.logger.Infof("server %d: sole voter, self-electing", r.id)
			// becomeCandidate's own quorum check (maybeWinElection)
			// immediately promotes Candidate -> Leader here, since a
			// quorum of 1 is satisfied by our own vote.
			return r.becomeCandidate()
		}
		return nil
	}

	if st.timerMs > st.electionTimeoutRandMs && self.Voting {
		return r.becomeCandidate()
	}
	return nil
}

func (r *Raft) tickCandidate(st *candidateState) error {
	if st.timerMs > st.electionTimeoutRandMs {
		r.logger.Infof("server %d: election timed out with no winner, restarting", r.id)
		return r.becomeCandidate()
	}
	return nil
}

func (r *Raft) tickLeader(st *leaderState, elapsedMs uint64) error {
	st.timerMs += elapsedMs
	if st.timerMs > uint64(r.heartbeatTimeout.Milliseconds()) {
		r.broadcastAppendEntries(st)
		st.timerMs = 0
	}
	r.advancePromotionClock(st, elapsedMs)
	return nil
}
