// Package metrics exposes Prometheus instrumentation for a running
// Raft instance: role, term, commit index, and RPC counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmaxwell/raft"
)

// Collector samples a *raft.Raft on each Prometheus scrape and counts
// inbound/outbound RPCs as they happen.
type Collector struct {
	r *raft.Raft

	role   *prometheus.Desc
	term   *prometheus.Desc
	commit *prometheus.Desc

	rpcsRecv *prometheus.CounterVec
	rpcsSent *prometheus.CounterVec
}

// NewCollector builds a Collector for r. Register it with a
// prometheus.Registry via MustRegister; it also registers the RPC
// counters, which are incremented by calling RecordRecv/RecordSent
// from the transport layer.
func NewCollector(r *raft.Raft) *Collector {
	return &Collector{
		r: r,
		role: prometheus.NewDesc(
			"raft_role", "Current server role (0=Unavailable 1=Follower 2=Candidate 3=Leader).", nil, nil,
		),
		term: prometheus.NewDesc(
			"raft_term", "Current term.", nil, nil,
		),
		commit: prometheus.NewDesc(
			"raft_commit_index", "Highest index known committed.", nil, nil,
		),
		rpcsRecv: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "raft_rpcs_received_total", Help: "Inbound RPCs by kind."},
			[]string{"kind"},
		),
		rpcsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "raft_rpcs_sent_total", Help: "Outbound RPCs by kind."},
			[]string{"kind"},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.role
	ch <- c.term
	ch <- c.commit
	c.rpcsRecv.Describe(ch)
	c.rpcsSent.Describe(ch)
}

// Collect implements prometheus.Collector, sampling live server state.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.role, prometheus.GaugeValue, float64(c.r.Role()))
	ch <- prometheus.MustNewConstMetric(c.term, prometheus.GaugeValue, float64(c.r.Term()))
	ch <- prometheus.MustNewConstMetric(c.commit, prometheus.GaugeValue, float64(c.r.CommitIndex()))
	c.rpcsRecv.Collect(ch)
	c.rpcsSent.Collect(ch)
}

// RecordRecv increments the received-RPC counter for kind
// ("request_vote", "append_entries", ...).
func (c *Collector) RecordRecv(kind string) {
	c.rpcsRecv.WithLabelValues(kind).Inc()
}

// RecordSent increments the sent-RPC counter for kind.
func (c *Collector) RecordSent(kind string) {
	c.rpcsSent.WithLabelValues(kind).Inc()
}

// RecordMessageRecv increments the received-RPC counter for msg's
// kind. It satisfies transport/rafthttp.Recorder, letting a Collector
// be wired into a Transport via Transport.Observe without rafthttp
// importing this package.
func (c *Collector) RecordMessageRecv(msg raft.Message) {
	c.RecordRecv(KindOf(msg))
}

// RecordMessageSent increments the sent-RPC counter for msg's kind.
func (c *Collector) RecordMessageSent(msg raft.Message) {
	c.RecordSent(KindOf(msg))
}

// KindOf returns the RPC kind label for msg, or "" if msg carries no
// recognized payload.
func KindOf(msg raft.Message) string {
	switch {
	case msg.RequestVote != nil:
		return "request_vote"
	case msg.RequestVoteResult != nil:
		return "request_vote_result"
	case msg.AppendEntries != nil:
		return "append_entries"
	case msg.AppendEntriesResult != nil:
		return "append_entries_result"
	default:
		return ""
	}
}
