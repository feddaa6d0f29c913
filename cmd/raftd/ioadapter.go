package main

import (
	"fmt"

	"github.com/dmaxwell/raft"
	"github.com/dmaxwell/raft/storage/boltstore"
	"github.com/dmaxwell/raft/transport/rafthttp"
)

// ioAdapter composes the durable-persistence collaborator
// (storage/boltstore) and the network collaborator
// (transport/rafthttp) into a single raft.Io, the way cmd/raftd wires
// the two reference implementations listed in the domain-stack table
// into one runnable node.
type ioAdapter struct {
	store     *boltstore.Store
	transport *rafthttp.Transport
}

func newIOAdapter(store *boltstore.Store, transport *rafthttp.Transport) *ioAdapter {
	return &ioAdapter{store: store, transport: transport}
}

func (a *ioAdapter) Load() (uint64, uint64, uint64, []raft.Entry, error) {
	return a.store.Load()
}

func (a *ioAdapter) Bootstrap(cfg *raft.Configuration) error {
	return a.store.Bootstrap(cfg)
}

func (a *ioAdapter) SetTerm(term uint64) error {
	return a.store.SetTerm(term)
}

func (a *ioAdapter) SetVote(id uint64) error {
	return a.store.SetVote(id)
}

func (a *ioAdapter) Append(entries []raft.Entry, done func(raft.Status)) {
	a.store.Append(entries, done)
}

func (a *ioAdapter) TruncateSuffix(index uint64) error {
	return a.store.TruncateSuffix(index)
}

func (a *ioAdapter) Send(to raft.Server, msg raft.Message, done func(raft.Status)) {
	a.transport.Send(to, msg, done)
}

func (a *ioAdapter) Start(id uint64, address string, tickMs uint64, tickCb func(uint64), recvCb func(raft.Message)) error {
	return a.transport.Start(id, address, tickMs, tickCb, recvCb)
}

func (a *ioAdapter) Stop(done func()) {
	a.transport.Stop(done)
}

func (a *ioAdapter) Close() error {
	if err := a.transport.Close(); err != nil {
		return fmt.Errorf("raftd: close transport: %w", err)
	}
	return a.store.Close()
}
