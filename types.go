package raft

// EntryType distinguishes the three kinds of log entry the core
// produces and consumes.
type EntryType int

const (
	// EntryCommand carries an opaque, user-domain payload destined for
	// the state machine's Apply method.
	EntryCommand EntryType = iota
	// EntryConfiguration carries an encoded Configuration snapshot;
	// applying it updates the active roster in place.
	EntryConfiguration
	// EntryNoop is appended by a new leader at the start of its term so
	// the leader-completeness commit rule (§4.4) applies immediately.
	EntryNoop
)

func (t EntryType) String() string {
	switch t {
	case EntryCommand:
		return "Command"
	case EntryConfiguration:
		return "Configuration"
	case EntryNoop:
		return "Noop"
	default:
		return "Unknown"
	}
}

// Batch is a reference-counted handle over a shared allocation backing
// one or more Entry payloads, as produced by an inbound AppendEntries
// decode. Truncating or replacing the last live entry referencing a
// batch releases it. A nil Batch means the entry owns its payload
// outright (e.g. one appended locally via Submit).
type Batch struct {
	refs int
	free func()
}

// NewBatch wraps release, a function invoked exactly once when the
// last entry referencing this batch is dropped. release may be nil.
func NewBatch(refs int, release func()) *Batch {
	return &Batch{refs: refs, free: release}
}

func (b *Batch) release() {
	if b == nil {
		return
	}
	b.refs--
	if b.refs <= 0 && b.free != nil {
		b.free()
		b.free = nil
	}
}

// Entry is an immutable record in the replicated log. Index is
// assigned by the Log when the entry is appended and is not part of
// the entry's own identity comparison (Term, Type, Data are).
type Entry struct {
	Index   uint64
	Term    uint64
	Type    EntryType
	Data    []byte
	Batch   *Batch
}

// Server describes one member of a Configuration.
type Server struct {
	ID      uint64
	Address string
	Voting  bool
}
