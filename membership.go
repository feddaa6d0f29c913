package raft

import (
	"encoding/json"
	"fmt"
)

// This file implements the Membership component (§4.6): single-
// server add/remove/promote, the round-based catch-up protocol for
// promotion, and its abort policy.

// configPayload is the wire encoding of a Configuration entry's Data.
// Kept separate from Configuration itself so the core's encode/decode
// concern doesn't leak into the roster type.
type configPayload struct {
	Servers []Server `json:"servers"`
}

func encodeConfiguration(cfg *Configuration) []byte {
	data, _ := json.Marshal(configPayload{Servers: cfg.Servers()})
	return data
}

func decodeConfiguration(data []byte) (*Configuration, error) {
	var payload configPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("raft: decode configuration entry: %w", err)
	}
	return NewConfiguration(payload.Servers...)
}

// AddServer appends a new non-voting server to the configuration and
// replicates the change. Only the leader may initiate; followers
// return ErrNotLeader (callers should redirect to LeaderID()).
func (r *Raft) AddServer(id uint64, address string) error {
	if err := r.checkShutdown(); err != nil {
		return err
	}
	if r.role != Leader {
		return ErrNotLeader
	}
	next, err := r.config.Add(id, address, false)
	if err != nil {
		return err
	}
	r.replicateConfiguration(next)
	return nil
}

// RemoveServer removes a server from the configuration and replicates
// the change. If id is the current promotee, the promotion is
// implicitly abandoned (its fields are cleared).
func (r *Raft) RemoveServer(id uint64) error {
	if err := r.checkShutdown(); err != nil {
		return err
	}
	if r.role != Leader {
		return ErrNotLeader
	}
	next, err := r.config.Remove(id)
	if err != nil {
		return err
	}
	if ls, ok := r.state.(*leaderState); ok && ls.promoteeID == id {
		r.clearPromotion(ls)
		delete(ls.progress, id)
	}
	r.replicateConfiguration(next)
	return nil
}

// PromoteServer begins the round-based catch-up protocol for a
// non-voting server already present in the configuration. It fails
// with ErrNotFound if id is absent, and ErrPromotionInProgress if
// another promotion is already underway.
func (r *Raft) PromoteServer(id uint64) error {
	if err := r.checkShutdown(); err != nil {
		return err
	}
	if r.role != Leader {
		return ErrNotLeader
	}
	if _, ok := r.config.Get(id); !ok {
		return ErrNotFound
	}
	ls := r.state.(*leaderState)
	if ls.promoteeID != 0 {
		return ErrPromotionInProgress
	}
	ls.promoteeID = id
	ls.roundNumber = 1
	ls.roundIndex = r.log.LastIndex()
	ls.roundDurationMs = 0
	if peer, ok := r.config.Get(id); ok {
		r.flushTo(peer, ls)
	}
	return nil
}

// replicateConfiguration appends an encoded Configuration entry and
// adopts next as the active roster as soon as the entry is appended to
// the local log, without waiting for it to commit. Peer progress
// for newly added servers is initialized so replication to them
// starts immediately.
func (r *Raft) replicateConfiguration(next *Configuration) {
	if ls, ok := r.state.(*leaderState); ok {
		for _, s := range next.Servers() {
			if _, exists := ls.progress[s.ID]; !exists {
				ls.progress[s.ID] = &peerProgress{nextIndex: r.log.LastIndex() + 1}
			}
		}
	}
	r.appendLocal(EntryConfiguration, encodeConfiguration(next))
	r.config = next
	if ls, ok := r.state.(*leaderState); ok {
		r.broadcastAppendEntries(ls)
	}
}

// applyConfigurationEntry updates the active configuration in place
// when a Configuration entry commits, per §4.4's Applier.
func (r *Raft) applyConfigurationEntry(entry Entry) {
	cfg, err := decodeConfiguration(entry.Data)
	if err != nil {
		r.logger.Warnf("server %d: failed to decode committed configuration at index %d: %v", r.id, entry.Index, err)
		return
	}
	r.config = cfg

	// Open question (§9): a removed server steps down as soon as it
	// notices its own absence via an applied configuration change,
	// rather than waiting to discover it at the next Follower tick.
	if r.role != Unavailable {
		if _, ok := cfg.Get(r.id); !ok {
			r.becomeFollower(0)
		}
	}
}

// checkPromotionProgress advances the promotion round machine after a
// successful AppendEntriesResult from peerID, per §4.6: when the
// promotee's match index reaches the round's target, the round
// completes — committing the promotion if it was fast enough, or
// starting a new round otherwise.
func (r *Raft) checkPromotionProgress(ls *leaderState, peerID uint64) {
	if ls.promoteeID == 0 || peerID != ls.promoteeID {
		return
	}
	prog, ok := ls.progress[peerID]
	if !ok || prog.matchIndex < ls.roundIndex {
		return
	}

	if ls.roundDurationMs < uint64(r.electionTimeout.Milliseconds()) {
		r.commitPromotion(ls, ls.promoteeID)
		return
	}

	ls.roundNumber++
	ls.roundIndex = r.log.LastIndex()
	ls.roundDurationMs = 0
	if peer, ok := r.config.Get(peerID); ok {
		r.flushTo(peer, ls)
	}
}

// commitPromotion flips the promotee to voting and replicates the
// resulting configuration, clearing the round-tracking fields.
func (r *Raft) commitPromotion(ls *leaderState, id uint64) {
	next, err := r.config.SetVoting(id, true)
	if err != nil {
		r.logger.Warnf("server %d: commitPromotion(%d): %v", r.id, id, err)
		r.clearPromotion(ls)
		return
	}
	r.clearPromotion(ls)
	r.replicateConfiguration(next)
}

func (r *Raft) clearPromotion(ls *leaderState) {
	ls.promoteeID = 0
	ls.roundNumber = 0
	ls.roundIndex = 0
	ls.roundDurationMs = 0
}

// advancePromotionClock is called once per leader tick to age the
// in-progress promotion's round timer and apply the abort policy of
// §4.6: abort at the 10th round if it's still over an election
// timeout, or unconditionally once the promotion has taken longer
// than MaxCatchUpDuration.
func (r *Raft) advancePromotionClock(ls *leaderState, elapsedMs uint64) {
	if ls.promoteeID == 0 {
		return
	}
	ls.roundDurationMs += elapsedMs

	tooSlow := ls.roundNumber >= r.maxRounds && ls.roundDurationMs > uint64(r.electionTimeout.Milliseconds())
	unresponsive := ls.roundDurationMs > uint64(r.maxCatchUpDuration.Milliseconds())

	if tooSlow || unresponsive {
		id := ls.promoteeID
		r.clearPromotion(ls)
		r.observer.PromotionAborted(id)
		r.logger.Infof("server %d: promotion of %d aborted", r.id, id)
	}
}
