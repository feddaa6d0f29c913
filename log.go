package raft

import "fmt"

// Log is an in-memory, append-only sequence of entries indexed from
// StartIndex(). It knows its own commit index only to the extent
// needed to refuse truncating a committed entry (ErrCommittedTruncation);
// commit advancement itself is owned by the core (see replication.go).
type Log struct {
	startIndex  uint64 // index of entries[0], or lastIndex+1 if empty
	entries     []Entry
	commitIndex uint64
}

// NewLog returns an empty log whose next append lands at startIndex.
// startIndex must be >= 1.
func NewLog(startIndex uint64) *Log {
	if startIndex == 0 {
		startIndex = 1
	}
	return &Log{startIndex: startIndex}
}

// LoadLog reconstructs a Log from a previously persisted tail, as
// returned by Io.Load. startIndex is the index of entries[0] (or, if
// entries is empty, the index the next append should claim).
func LoadLog(startIndex uint64, entries []Entry) *Log {
	l := NewLog(startIndex)
	l.entries = append(l.entries, entries...)
	return l
}

// StartIndex returns the index of the oldest entry still held, or
// LastIndex()+1 if the log is empty.
func (l *Log) StartIndex() uint64 { return l.startIndex }

// LastIndex returns the index of the most recent entry, or
// StartIndex()-1 if the log is empty.
func (l *Log) LastIndex() uint64 {
	if len(l.entries) == 0 {
		return l.startIndex - 1
	}
	return l.entries[len(l.entries)-1].Index
}

// LastTerm returns the term of the most recent entry, or 0 if empty.
func (l *Log) LastTerm() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

// has reports whether index falls within [StartIndex(), LastIndex()].
func (l *Log) has(index uint64) bool {
	return index >= l.startIndex && index <= l.LastIndex()
}

// TermAt returns the term of the entry at index. The second return
// value is false if index is outside [StartIndex(), LastIndex()].
func (l *Log) TermAt(index uint64) (uint64, bool) {
	if index == 0 {
		return 0, true
	}
	if !l.has(index) {
		return 0, false
	}
	return l.entries[index-l.startIndex].Term, true
}

// EntryAt returns the entry at index, if held.
func (l *Log) EntryAt(index uint64) (Entry, bool) {
	if !l.has(index) {
		return Entry{}, false
	}
	return l.entries[index-l.startIndex], true
}

// Append extends the log with a new entry of the given term, type and
// payload, assigning it index LastIndex()+1. batch is the shared
// allocation the payload references, or nil if the entry owns Data
// outright.
func (l *Log) Append(term uint64, typ EntryType, data []byte, batch *Batch) uint64 {
	index := l.LastIndex() + 1
	if len(l.entries) == 0 {
		l.startIndex = index
	}
	l.entries = append(l.entries, Entry{
		Index: index,
		Term:  term,
		Type:  typ,
		Data:  data,
		Batch: batch,
	})
	return index
}

// EntriesFrom returns a copy of entries [from, LastIndex()], or nil if
// from > LastIndex().
func (l *Log) EntriesFrom(from uint64) []Entry {
	if from > l.LastIndex() {
		return nil
	}
	if from < l.startIndex {
		from = l.startIndex
	}
	out := make([]Entry, l.LastIndex()-from+1)
	copy(out, l.entries[from-l.startIndex:])
	return out
}

// TruncateSuffix discards every entry with index >= from, releasing
// batch references for the discarded entries. It fails with
// ErrCommittedTruncation if from <= the last known commit index.
func (l *Log) TruncateSuffix(from uint64) error {
	if from <= l.commitIndex {
		return fmt.Errorf("%w: index %d <= commit index %d", ErrCommittedTruncation, from, l.commitIndex)
	}
	if from > l.LastIndex() {
		return nil
	}
	cut := from - l.startIndex
	for i := cut; i < uint64(len(l.entries)); i++ {
		l.entries[i].Batch.release()
	}
	l.entries = l.entries[:cut]
	if len(l.entries) == 0 {
		l.startIndex = from
	}
	return nil
}

// observeCommit records the highest index known to be committed, so
// subsequent truncation attempts can be rejected per invariant 2 of
// §3 (a leader never mutates entries it has committed; a follower
// that disagrees with a committed entry is a fatal invariant
// violation, not a truncation).
func (l *Log) observeCommit(index uint64) {
	if index > l.commitIndex {
		l.commitIndex = index
	}
}
