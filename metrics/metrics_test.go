package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmaxwell/raft"
	"github.com/dmaxwell/raft/metrics"
)

func newBoundServer(t *testing.T, id uint64, servers []raft.Server) *raft.Raft {
	t.Helper()
	cfg, err := raft.NewConfiguration(servers...)
	require.NoError(t, err)
	r, err := raft.New(raft.Options{
		ID:               id,
		Address:          "addr",
		ElectionTimeout:  100 * time.Millisecond,
		HeartbeatTimeout: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Bind(noopIo{}, cfg))
	return r
}

type noopIo struct{}

func (noopIo) Load() (uint64, uint64, uint64, []raft.Entry, error) { return 0, 0, 1, nil, nil }
func (noopIo) Bootstrap(*raft.Configuration) error                 { return nil }
func (noopIo) SetTerm(uint64) error                                { return nil }
func (noopIo) SetVote(uint64) error                                { return nil }
func (noopIo) Append(entries []raft.Entry, done func(raft.Status)) { done(raft.StatusOK) }
func (noopIo) TruncateSuffix(uint64) error                         { return nil }
func (noopIo) Send(raft.Server, raft.Message, func(raft.Status))   {}
func (noopIo) Start(uint64, string, uint64, func(uint64), func(raft.Message)) error {
	return nil
}
func (noopIo) Stop(done func()) { done() }
func (noopIo) Close() error     { return nil }

func TestCollectorReportsLiveState(t *testing.T) {
	r := newBoundServer(t, 1, []raft.Server{{ID: 1, Address: "addr", Voting: true}})
	c := metrics.NewCollector(r)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	require.NoError(t, r.Tick(1000))

	n, err := testutil.GatherAndCount(registry, "raft_role", "raft_term", "raft_commit_index")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, "request_vote", metrics.KindOf(raft.Message{RequestVote: &raft.RequestVote{}}))
	require.Equal(t, "append_entries", metrics.KindOf(raft.Message{AppendEntries: &raft.AppendEntries{}}))
	require.Equal(t, "", metrics.KindOf(raft.Message{}))
}

func TestRecordCounters(t *testing.T) {
	r := newBoundServer(t, 1, []raft.Server{{ID: 1, Address: "addr", Voting: true}})
	c := metrics.NewCollector(r)
	c.RecordRecv("append_entries")
	c.RecordSent("append_entries")

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	n, err := testutil.GatherAndCount(registry, "raft_rpcs_received_total", "raft_rpcs_sent_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
