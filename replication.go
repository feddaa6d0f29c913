package raft

import "fmt"

// This file implements the Replication component (§4.4): per-peer
// progress, outbound AppendEntries assembly, log repair on rejection,
// and commit-index advancement.

// maxEntriesPerBatch caps how many entries a single AppendEntries
// request carries, bounding request size during bulk catch-up.
const maxEntriesPerBatch = 64

// broadcastAppendEntries sends a replication/heartbeat message to
// every other server in the configuration (voting and non-voting: a
// promotee must receive entries too, per §4.6).
func (r *Raft) broadcastAppendEntries(ls *leaderState) {
	for _, s := range r.config.Servers() {
		if s.ID == r.id {
			continue
		}
		r.flushTo(s, ls)
	}
}

// flushTo builds and sends the best AppendEntries we can for peer,
// given its current next index. Idempotent: safe to call repeatedly
// as a heartbeat or eagerly after repair.
func (r *Raft) flushTo(peer Server, ls *leaderState) {
	prog, ok := ls.progress[peer.ID]
	if !ok {
		return
	}
	prevLogIndex := prog.nextIndex - 1
	prevLogTerm, _ := r.log.TermAt(prevLogIndex)

	var entries []Entry
	if prog.nextIndex <= r.log.LastIndex() {
		entries = r.log.EntriesFrom(prog.nextIndex)
		if len(entries) > maxEntriesPerBatch {
			entries = entries[:maxEntriesPerBatch]
		}
	}

	req := AppendEntries{
		Term:         r.currentTerm,
		LeaderID:     r.id,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: r.commitIndex,
	}
	r.send(peer, Message{AppendEntries: &req})
}

// handleAppendEntries implements the receiver rules of §4.4. If we
// are Candidate or Leader and req.Term >= our term, we step down to
// Follower first, per the preamble of §4.4's receiver rules.
//
// The result is delivered through respond rather than returned
// directly: newly accepted entries must be durable before a success
// result is released (§3's persistent-state invariant), and that
// durability is only known once r.io.Append's completion callback
// fires — the same append-then-wait-for-done shape appendLocal uses
// for leader-local entries. A non-nil error return is reserved for
// conditions detected before any durable write is attempted.
func (r *Raft) handleAppendEntries(req AppendEntries, respond func(AppendEntriesResult)) error {
	if req.Term < r.currentTerm {
		respond(AppendEntriesResult{Term: r.currentTerm, Success: false, LastLogIndex: r.log.LastIndex()})
		return nil
	}

	// At this point req.Term >= r.currentTerm (the staleness check
	// above returned early otherwise). A strictly higher term is a
	// full step-down: persist the new term, clear the vote. A
	// Candidate or Leader seeing an AppendEntries at its own term
	// recognizes the sender as the legitimate leader and converts to
	// Follower without touching persisted term/vote state.
	switch {
	case req.Term > r.currentTerm:
		if err := r.stepDown(req.Term, req.LeaderID); err != nil {
			return err
		}
	case r.role == Candidate || r.role == Leader:
		r.becomeFollower(req.LeaderID)
	}

	if fs, ok := r.state.(*followerState); ok {
		fs.currentLeaderID = req.LeaderID
		r.resetElectionTimer()
	}

	last := r.log.LastIndex()
	if req.PrevLogIndex > last {
		respond(AppendEntriesResult{Term: r.currentTerm, Success: false, LastLogIndex: last})
		return nil
	}

	if req.PrevLogIndex >= r.log.StartIndex() {
		if term, ok := r.log.TermAt(req.PrevLogIndex); ok && term != req.PrevLogTerm {
			if req.PrevLogIndex <= r.commitIndex {
				return r.fatal(
					"committed entry at index %d (term %d) disagrees with leader %d's prevLogTerm %d",
					req.PrevLogIndex, term, req.LeaderID, req.PrevLogTerm,
				)
			}
			if err := r.log.TruncateSuffix(req.PrevLogIndex); err != nil {
				return fmt.Errorf("raft: truncate after prevLogIndex mismatch: %w", err)
			}
			if err := r.io.TruncateSuffix(req.PrevLogIndex); err != nil {
				return fmt.Errorf("raft: durable truncate after prevLogIndex mismatch: %w", err)
			}
			respond(AppendEntriesResult{Term: r.currentTerm, Success: false, LastLogIndex: r.log.LastIndex()})
			return nil
		}
	}

	lastNewIndex := req.PrevLogIndex
	var newEntries []Entry
	for _, entry := range req.Entries {
		i := entry.Index
		if i > r.log.LastIndex() {
			r.log.Append(entry.Term, entry.Type, entry.Data, entry.Batch)
			if e, ok := r.log.EntryAt(i); ok {
				newEntries = append(newEntries, e)
			}
			lastNewIndex = i
			continue
		}
		if term, _ := r.log.TermAt(i); term == entry.Term {
			lastNewIndex = i
			continue
		}
		if i <= r.commitIndex {
			return r.fatal(
				"committed entry at index %d conflicts with leader %d's entry of term %d",
				i, req.LeaderID, entry.Term,
			)
		}
		if err := r.log.TruncateSuffix(i); err != nil {
			return fmt.Errorf("raft: truncate on term conflict: %w", err)
		}
		if err := r.io.TruncateSuffix(i); err != nil {
			return fmt.Errorf("raft: durable truncate on term conflict: %w", err)
		}
		r.log.Append(entry.Term, entry.Type, entry.Data, entry.Batch)
		if e, ok := r.log.EntryAt(i); ok {
			newEntries = append(newEntries, e)
		}
		lastNewIndex = i
	}

	finish := func(success bool) {
		if !success {
			respond(AppendEntriesResult{Term: r.currentTerm, Success: false, LastLogIndex: r.log.LastIndex()})
			return
		}
		if req.LeaderCommit > r.commitIndex {
			newCommit := req.LeaderCommit
			if lastNewIndex < newCommit {
				newCommit = lastNewIndex
			}
			if newCommit > r.commitIndex {
				r.advanceCommitIndex(newCommit)
			}
		}
		respond(AppendEntriesResult{Term: r.currentTerm, Success: true, LastLogIndex: r.log.LastIndex()})
	}

	if len(newEntries) == 0 {
		finish(true)
		return nil
	}

	r.io.Append(newEntries, func(status Status) {
		if status != StatusOK {
			r.logger.Warnf("server %d: durable append of %d entries from leader %d failed", r.id, len(newEntries), req.LeaderID)
		}
		finish(status == StatusOK)
	})
	return nil
}

// handleAppendEntriesResult implements the leader-side result
// handling of §4.4. It is a no-op unless we are Leader.
func (r *Raft) handleAppendEntriesResult(fromID uint64, res AppendEntriesResult) error {
	if res.Term > r.currentTerm {
		return r.stepDown(res.Term, 0)
	}
	if res.Term < r.currentTerm {
		return nil
	}
	if r.role != Leader {
		return nil
	}
	ls := r.state.(*leaderState)
	prog, ok := ls.progress[fromID]
	if !ok {
		return nil
	}

	if res.Success {
		r.advanceMatchIndex(ls, fromID, res.LastLogIndex)
		r.checkPromotionProgress(ls, fromID)
		return nil
	}

	next := prog.nextIndex - 1
	if next > res.LastLogIndex+1 {
		next = res.LastLogIndex + 1
	}
	if next < 1 {
		next = 1
	}
	prog.nextIndex = next
	if peer, ok := r.config.Get(fromID); ok {
		r.flushTo(peer, ls)
	}
	return nil
}

// advanceMatchIndex records a new (monotonic) match index for peer,
// and recomputes the commit index: the highest index held by a voting
// quorum (including self, if voting) whose term equals our own.
func (r *Raft) advanceMatchIndex(ls *leaderState, peerID uint64, index uint64) {
	prog, ok := ls.progress[peerID]
	if !ok {
		return
	}
	if index > prog.matchIndex {
		prog.matchIndex = index
	}
	if index+1 > prog.nextIndex {
		prog.nextIndex = index + 1
	}

	n := r.highestQuorumIndex(ls)
	if n > r.commitIndex {
		r.advanceCommitIndex(n)
	}
}

// highestQuorumIndex returns the highest index N such that a voting
// quorum of servers (leader included, if voting) has matchIndex >= N
// and term_at(N) == currentTerm — invariant 5 of §3: only entries
// from the leader's current term commit directly.
func (r *Raft) highestQuorumIndex(ls *leaderState) uint64 {
	quorum := r.config.Quorum()
	upper := r.log.LastIndex()
	for n := upper; n > r.commitIndex; n-- {
		term, ok := r.log.TermAt(n)
		if !ok || term != r.currentTerm {
			continue
		}
		count := 0
		for _, s := range r.config.Servers() {
			if !s.Voting {
				continue
			}
			if prog, ok := ls.progress[s.ID]; ok && prog.matchIndex >= n {
				count++
			}
		}
		if count >= quorum {
			return n
		}
	}
	return r.commitIndex
}

// advanceCommitIndex raises the commit index and applies every newly
// committed entry to the state machine, in order.
func (r *Raft) advanceCommitIndex(n uint64) {
	r.commitIndex = n
	r.log.observeCommit(n)
	r.applyCommitted()
}

// applyCommitted delivers every entry with lastApplied < index <=
// commitIndex to the user state machine (Command entries) or the
// active configuration (Configuration entries), in strictly
// increasing index order (§4.4's Applier, invariant 1 of §3).
func (r *Raft) applyCommitted() {
	for r.lastApplied < r.commitIndex {
		index := r.lastApplied + 1
		entry, ok := r.log.EntryAt(index)
		if !ok {
			return
		}
		switch entry.Type {
		case EntryCommand:
			if r.fsm != nil {
				if _, err := r.fsm.Apply(index, entry.Data); err != nil {
					r.logger.Warnf("server %d: apply index %d failed: %v", r.id, index, err)
				}
			}
		case EntryConfiguration:
			r.applyConfigurationEntry(entry)
		case EntryNoop:
			// nothing to apply
		}
		r.lastApplied = index
	}
}
