package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddServerNonLeaderRejected(t *testing.T) {
	r, _ := newTestServer(t, 1, voters(1, 2))
	require.ErrorIs(t, r.AddServer(3, addrFor(3)), ErrNotLeader)
}

func TestAddServerReplicatesAsNonVoting(t *testing.T) {
	r, io := newTestServer(t, 1, voters(1, 2))
	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())

	require.NoError(t, r.AddServer(3, addrFor(3)))

	entry, ok := r.log.EntryAt(r.log.LastIndex())
	require.True(t, ok)
	require.Equal(t, EntryConfiguration, entry.Type)

	cfg, err := decodeConfiguration(entry.Data)
	require.NoError(t, err)
	s, ok := cfg.Get(3)
	require.True(t, ok)
	require.False(t, s.Voting)

	ls := r.state.(*leaderState)
	_, tracked := ls.progress[3]
	require.True(t, tracked, "new server must get replication progress immediately")

	_, sentTo3 := io.lastSentTo(3)
	require.True(t, sentTo3)
}

func TestRemoveServerClearsInFlightPromotion(t *testing.T) {
	r, _ := newTestServer(t, 1, voters(1, 2))
	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())
	require.NoError(t, r.AddServer(3, addrFor(3)))
	require.NoError(t, r.PromoteServer(3))

	ls := r.state.(*leaderState)
	require.Equal(t, uint64(3), ls.promoteeID)

	require.NoError(t, r.RemoveServer(3))
	require.Equal(t, uint64(0), ls.promoteeID)
	_, tracked := ls.progress[3]
	require.False(t, tracked)
}

func TestPromoteServerUnknownRejected(t *testing.T) {
	r, _ := newTestServer(t, 1, voters(1, 2))
	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())
	require.ErrorIs(t, r.PromoteServer(99), ErrNotFound)
}

func TestPromoteServerAlreadyInProgressRejected(t *testing.T) {
	r, _ := newTestServer(t, 1, voters(1, 2))
	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())
	require.NoError(t, r.AddServer(3, addrFor(3)))
	require.NoError(t, r.AddServer(4, addrFor(4)))

	require.NoError(t, r.PromoteServer(3))
	require.ErrorIs(t, r.PromoteServer(4), ErrPromotionInProgress)
}

func TestPromotionCommitsWhenCatchUpIsFastEnough(t *testing.T) {
	r, _ := newTestServer(t, 1, voters(1, 2))
	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())
	require.NoError(t, r.AddServer(3, addrFor(3)))
	require.NoError(t, r.PromoteServer(3))

	ls := r.state.(*leaderState)
	target := ls.roundIndex

	// Promotee catches up well within one election timeout: the round
	// completes and the promotion commits (replicated as a new
	// Configuration entry making server 3 voting).
	require.NoError(t, r.handleAppendEntriesResult(3, AppendEntriesResult{
		Term: r.Term(), Success: true, LastLogIndex: target,
	}))

	require.Equal(t, uint64(0), ls.promoteeID, "promotion cleared after committing")
	entry, ok := r.log.EntryAt(r.log.LastIndex())
	require.True(t, ok)
	require.Equal(t, EntryConfiguration, entry.Type)
	cfg, err := decodeConfiguration(entry.Data)
	require.NoError(t, err)
	s, ok := cfg.Get(3)
	require.True(t, ok)
	require.True(t, s.Voting)
}

type abortRecorder struct {
	aborted []uint64
}

func (a *abortRecorder) PromotionAborted(id uint64) { a.aborted = append(a.aborted, id) }

func TestPromotionAbortsAfterMaxCatchUpDuration(t *testing.T) {
	// S6: a promotee that never catches up is abandoned once the
	// configured catch-up ceiling elapses, regardless of round count.
	obs := &abortRecorder{}
	cfg, err := NewConfiguration(voters(1, 2)...)
	require.NoError(t, err)
	r, err := New(Options{
		ID:                 1,
		Address:            addrFor(1),
		ElectionTimeout:    testElectionTimeout,
		HeartbeatTimeout:   testHeartbeatTimeout,
		MaxCatchUpDuration: 50 * testElectionTimeout,
		Observer:           obs,
	}, nil)
	require.NoError(t, err)
	io := newFakeIO()
	require.NoError(t, r.Bind(io, cfg))

	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())
	require.NoError(t, r.AddServer(3, addrFor(3)))
	require.NoError(t, r.PromoteServer(3))

	ls := r.state.(*leaderState)
	require.NoError(t, r.Tick(uint64(r.maxCatchUpDuration.Milliseconds())+1))

	require.Equal(t, uint64(0), ls.promoteeID)
	require.Equal(t, []uint64{3}, obs.aborted)
}

func TestPromotionAbortsAfterTooManySlowRounds(t *testing.T) {
	r, _ := newTestServer(t, 1, voters(1, 2))
	require.NoError(t, r.becomeCandidate())
	require.NoError(t, r.becomeLeader())
	require.NoError(t, r.AddServer(3, addrFor(3)))
	require.NoError(t, r.PromoteServer(3))

	ls := r.state.(*leaderState)

	// Each round catches up but too slowly to commit: roundNumber climbs
	// by one per round instead of completing the promotion.
	for i := 1; i < r.maxRounds; i++ {
		target := ls.roundIndex
		ls.roundDurationMs = uint64(r.electionTimeout.Milliseconds()) + 1
		require.NoError(t, r.handleAppendEntriesResult(3, AppendEntriesResult{
			Term: r.Term(), Success: true, LastLogIndex: target,
		}))
	}
	require.Equal(t, r.maxRounds, ls.roundNumber)

	// One more tick past the election timeout at the max round number
	// trips the abort policy's "too many slow rounds" branch.
	require.NoError(t, r.Tick(uint64(r.electionTimeout.Milliseconds())+1))

	require.Equal(t, uint64(0), ls.promoteeID, "promotion aborted after exhausting rounds")
}
