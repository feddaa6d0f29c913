package raft

import "fmt"

// This file implements the RPC Dispatch component (§4.7): a pure
// router over the four message kinds, plus the Submit entry point
// that accepts new Command entries from the owning process.

// Recv routes one inbound message to the appropriate handler. It is
// one of the three mutually exclusive entry points (§5). Messages
// from a sender not present in the active configuration are logged
// and ignored, per §4.7.
func (r *Raft) Recv(msg Message) error {
	if err := r.checkShutdown(); err != nil {
		return err
	}
	if r.role == Unavailable {
		return nil
	}

	if _, ok := r.config.Get(msg.ServerID); !ok {
		r.logger.Debugf("server %d: ignoring message from unknown sender %d", r.id, msg.ServerID)
		return nil
	}

	switch {
	case msg.RequestVote != nil:
		res, err := r.handleRequestVote(*msg.RequestVote)
		if err != nil {
			return err
		}
		r.send(Server{ID: msg.ServerID, Address: msg.ServerAddress}, Message{RequestVoteResult: &res})
		return nil

	case msg.RequestVoteResult != nil:
		return r.handleRequestVoteResult(msg.ServerID, *msg.RequestVoteResult)

	case msg.AppendEntries != nil:
		from := Server{ID: msg.ServerID, Address: msg.ServerAddress}
		return r.handleAppendEntries(*msg.AppendEntries, func(res AppendEntriesResult) {
			r.send(from, Message{AppendEntriesResult: &res})
		})

	case msg.AppendEntriesResult != nil:
		return r.handleAppendEntriesResult(msg.ServerID, *msg.AppendEntriesResult)

	default:
		return fmt.Errorf("%w: message carries no recognized payload", ErrBadRequest)
	}
}

// Submit appends a Command entry to the log if we are Leader, per
// the ordering guarantee that submitted entries receive contiguous
// increasing indices in submit order (§5). It returns ErrNotLeader
// otherwise — callers should redirect to LeaderID().
func (r *Raft) Submit(data []byte) (uint64, error) {
	if err := r.checkShutdown(); err != nil {
		return 0, err
	}
	if r.role != Leader {
		return 0, ErrNotLeader
	}
	index := r.appendLocal(EntryCommand, data)
	if ls, ok := r.state.(*leaderState); ok {
		r.broadcastAppendEntries(ls)
	}
	return index, nil
}
