package raft

import (
	"testing"
	"time"
)

const (
	testElectionTimeout  = 100 * time.Millisecond
	testHeartbeatTimeout = 20 * time.Millisecond
)

// newTestServer builds and binds a Raft instance with the given id
// against a configuration made from servers, backed by a fresh
// fakeIO. It starts in Follower, per the Unavailable -> Follower
// startup transition.
func newTestServer(t *testing.T, id uint64, servers []Server) (*Raft, *fakeIO) {
	t.Helper()
	cfg, err := NewConfiguration(servers...)
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}
	r, err := New(Options{
		ID:               id,
		Address:          addressOf(servers, id),
		ElectionTimeout:  testElectionTimeout,
		HeartbeatTimeout: testHeartbeatTimeout,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	io := newFakeIO()
	if err := r.Bind(io, cfg); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return r, io
}

// handleAppendEntriesSync drives handleAppendEntries synchronously for
// tests. fakeIO's Append invokes its done callback inline, so the
// respond closure below has always run by the time this returns.
func (r *Raft) handleAppendEntriesSync(req AppendEntries) (AppendEntriesResult, error) {
	var res AppendEntriesResult
	err := r.handleAppendEntries(req, func(got AppendEntriesResult) {
		res = got
	})
	return res, err
}

func addressOf(servers []Server, id uint64) string {
	for _, s := range servers {
		if s.ID == id {
			return s.Address
		}
	}
	return ""
}

func voters(ids ...uint64) []Server {
	out := make([]Server, len(ids))
	for i, id := range ids {
		out[i] = Server{ID: id, Address: addrFor(id), Voting: true}
	}
	return out
}

func addrFor(id uint64) string {
	return "peer:" + string(rune('0'+int(id)))
}
