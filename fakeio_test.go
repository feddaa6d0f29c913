package raft

// fakeIO is a minimal, fully synchronous Io implementation used by the
// core's own unit and scenario tests. It has no background goroutines
// and no wall-clock dependency: Append and Send complete inline, so
// tests drive the core deterministically through Tick/Recv/Submit
// without any scheduling nondeterminism. The reference asynchronous
// collaborators (storage/boltstore, transport/rafthttp) are exercised
// separately, in their own packages.
type fakeIO struct {
	term       uint64
	votedFor   uint64
	startIndex uint64
	entries    []Entry

	sent []sentMessage

	sendStatus   Status
	appendStatus Status
}

type sentMessage struct {
	To  Server
	Msg Message
}

func newFakeIO() *fakeIO {
	// Term starts at 1, the term a freshly bootstrapped store reports
	// (§6 Bootstrap creates a single Configuration entry at index 1,
	// term 1). The log starts empty: tests that need the bootstrap entry
	// append it themselves.
	return &fakeIO{term: 1, startIndex: 1, sendStatus: StatusOK, appendStatus: StatusOK}
}

func (f *fakeIO) Load() (uint64, uint64, uint64, []Entry, error) {
	return f.term, f.votedFor, f.startIndex, f.entries, nil
}

func (f *fakeIO) Bootstrap(cfg *Configuration) error { return nil }

func (f *fakeIO) SetTerm(term uint64) error {
	f.term = term
	return nil
}

func (f *fakeIO) SetVote(id uint64) error {
	f.votedFor = id
	return nil
}

func (f *fakeIO) Append(entries []Entry, done func(Status)) {
	f.entries = append(f.entries, entries...)
	done(f.appendStatus)
}

func (f *fakeIO) TruncateSuffix(index uint64) error {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.Index < index {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeIO) Send(to Server, msg Message, done func(Status)) {
	f.sent = append(f.sent, sentMessage{To: to, Msg: msg})
	done(f.sendStatus)
}

func (f *fakeIO) Start(id uint64, address string, tickMs uint64, tickCb func(uint64), recvCb func(Message)) error {
	return nil
}

func (f *fakeIO) Stop(done func()) { done() }

func (f *fakeIO) Close() error { return nil }

// lastSentTo returns the most recent message sent to peer id, if any.
func (f *fakeIO) lastSentTo(id uint64) (Message, bool) {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].To.ID == id {
			return f.sent[i].Msg, true
		}
	}
	return Message{}, false
}

func (f *fakeIO) countSent(match func(Message) bool) int {
	n := 0
	for _, s := range f.sent {
		if match(s.Msg) {
			n++
		}
	}
	return n
}
