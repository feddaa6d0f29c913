// Package rafthttp is the reference network transport collaborator
// for raft.Io: it carries the four wire messages (RequestVote,
// RequestVoteResult, AppendEntries, AppendEntriesResult) as JSON POST
// bodies to a single path, the same wire convention the teacher's own
// http package uses for its four separate RPC paths.
//
// Transport also owns the single event loop that funnels both the
// tick timer and inbound HTTP deliveries into one goroutine, so the
// core's Tick/Recv mutual-exclusion requirement holds without the
// caller having to arrange it: Start's tickCb and recvCb are always
// invoked serially, from the same goroutine, regardless of which
// background activity produced the event.
package rafthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmaxwell/raft"
)

// MessagePath is the single endpoint every peer POSTs envelopes to.
const MessagePath = "/raft/message"

// Mux is the subset of http.ServeMux (or any compatible router) the
// Handler needs to register itself, mirroring the teacher's http
// package's own Mux interface.
type Mux interface {
	HandleFunc(path string, handler func(http.ResponseWriter, *http.Request))
}

// Recorder observes RPC traffic as a Transport sends and receives
// messages. Wiring one in via Transport.Observe is optional
// instrumentation (see metrics.Collector, which satisfies this
// interface); a Transport with none wired in behaves identically.
type Recorder interface {
	RecordMessageRecv(raft.Message)
	RecordMessageSent(raft.Message)
}

// Handler serves inbound RPCs, handing each decoded envelope to
// Transport's event loop rather than invoking the core directly: the
// response to an AppendEntries/RequestVote is delivered later, as its
// own outbound message via Transport.Send, not as this HTTP response.
type Handler struct {
	Transport *Transport
}

// Install registers the handler's routes on mux.
func (h *Handler) Install(mux Mux) {
	mux.HandleFunc(MessagePath, h.serveMessage)
}

func (h *Handler) serveMessage(w http.ResponseWriter, r *http.Request) {
	var msg raft.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, fmt.Sprintf("decode message: %v", err), http.StatusBadRequest)
		return
	}
	if !h.Transport.enqueueRecv(msg) {
		http.Error(w, "transport not accepting deliveries", http.StatusServiceUnavailable)
		return
	}
	if h.Transport.recorder != nil {
		h.Transport.recorder.RecordMessageRecv(msg)
	}
	w.WriteHeader(http.StatusOK)
}

// Transport is a raft.Io collaborator covering the network-facing
// methods (Send, Start, Stop, Close); persistence is left to a
// separate collaborator (storage/boltstore) composed alongside it.
type Transport struct {
	client *http.Client
	server *http.Server
	mux    *http.ServeMux

	tickCb func(uint64)
	recvCb func(raft.Message)

	events   chan func()
	lastTick time.Time
	done     chan struct{}

	recorder Recorder
}

// Observe wires rec into Transport so every Send and every inbound
// delivery is reported to it. Call before Start; nil disables
// reporting (the default).
func (t *Transport) Observe(rec Recorder) {
	t.recorder = rec
}

// NewTransport constructs an unstarted Transport listening on addr
// once Start is called.
func NewTransport(addr string) *Transport {
	mux := http.NewServeMux()
	return &Transport{
		client: &http.Client{Timeout: 5 * time.Second},
		mux:    mux,
		server: &http.Server{Addr: addr, Handler: mux},
		events: make(chan func(), 256),
	}
}

// Send posts msg to to's address as a JSON body, per raft.Io.Send.
// done is invoked on the event loop, like tickCb and recvCb; once the
// transport is stopped, done is no longer invoked.
func (t *Transport) Send(to raft.Server, msg raft.Message, done func(raft.Status)) {
	if t.recorder != nil {
		t.recorder.RecordMessageSent(msg)
	}
	finish := func(st raft.Status) {
		select {
		case t.events <- func() { done(st) }:
		case <-t.done:
		}
	}
	go func() {
		var body bytes.Buffer
		if err := json.NewEncoder(&body).Encode(msg); err != nil {
			finish(raft.StatusError)
			return
		}
		req, err := http.NewRequest(http.MethodPost, "http://"+to.Address+MessagePath, &body)
		if err != nil {
			finish(raft.StatusError)
			return
		}
		resp, err := t.client.Do(req)
		if err != nil {
			finish(raft.StatusError)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			finish(raft.StatusError)
			return
		}
		finish(raft.StatusOK)
	}()
}

// Start begins listening on the configured address, starts the event
// loop, and starts the background ticker that feeds it elapsed-time
// events. It installs no route: the message Handler is registered
// separately, via Handler.Install on ServeMux().
func (t *Transport) Start(id uint64, address string, tickMs uint64, tickCb func(uint64), recvCb func(raft.Message)) error {
	t.tickCb = tickCb
	t.recvCb = recvCb
	t.done = make(chan struct{})
	t.lastTick = time.Now()

	go t.loop()

	ticker := time.NewTicker(time.Duration(tickMs) * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				elapsed := uint64(now.Sub(t.lastTick) / time.Millisecond)
				t.lastTick = now
				select {
				case t.events <- func() { t.tickCb(elapsed) }:
				case <-t.done:
					return
				}
			case <-t.done:
				return
			}
		}
	}()

	go t.server.ListenAndServe()
	return nil
}

// loop is the single goroutine every tick and every inbound message
// is serialized through before reaching the core.
func (t *Transport) loop() {
	for {
		select {
		case fn := <-t.events:
			fn()
		case <-t.done:
			return
		}
	}
}

// enqueueRecv schedules msg for delivery to recvCb on the event loop.
// It reports false if the transport has been stopped.
func (t *Transport) enqueueRecv(msg raft.Message) bool {
	select {
	case t.events <- func() { t.recvCb(msg) }:
		return true
	case <-t.done:
		return false
	}
}

// Stop signals the event loop and ticker to exit, shuts down the HTTP
// listener (waiting up to five seconds), then invokes done. It does not
// wait for the loop and ticker goroutines to return.
func (t *Transport) Stop(done func()) {
	close(t.done)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.server.Shutdown(ctx)
	done()
}

// Close is a no-op beyond Stop; the HTTP client and server hold no
// additional resources that outlive Stop.
func (t *Transport) Close() error { return nil }

// ServeMux exposes the underlying mux so a caller (e.g. cmd/raftd) can
// register the message Handler on it via Handler.Install.
func (t *Transport) ServeMux() *http.ServeMux { return t.mux }
