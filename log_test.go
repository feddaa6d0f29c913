package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendAssignsContiguousIndices(t *testing.T) {
	l := NewLog(1)
	i1 := l.Append(1, EntryCommand, []byte("a"), nil)
	i2 := l.Append(1, EntryCommand, []byte("b"), nil)
	require.Equal(t, uint64(1), i1)
	require.Equal(t, uint64(2), i2)
	require.Equal(t, uint64(2), l.LastIndex())
}

func TestLogTermAtOutOfRange(t *testing.T) {
	l := NewLog(1)
	l.Append(3, EntryCommand, nil, nil)
	_, ok := l.TermAt(5)
	require.False(t, ok)
	term, ok := l.TermAt(1)
	require.True(t, ok)
	require.Equal(t, uint64(3), term)
	term, ok = l.TermAt(0)
	require.True(t, ok)
	require.Equal(t, uint64(0), term)
}

func TestLogTruncateSuffix(t *testing.T) {
	l := NewLog(1)
	l.Append(1, EntryCommand, []byte("a"), nil)
	l.Append(1, EntryCommand, []byte("b"), nil)
	l.Append(2, EntryCommand, []byte("c"), nil)

	require.NoError(t, l.TruncateSuffix(2))
	require.Equal(t, uint64(1), l.LastIndex())

	e, ok := l.EntryAt(1)
	require.True(t, ok)
	require.Equal(t, []byte("a"), e.Data)
}

func TestLogTruncateRefusesCommitted(t *testing.T) {
	l := NewLog(1)
	l.Append(1, EntryCommand, []byte("a"), nil)
	l.Append(1, EntryCommand, []byte("b"), nil)
	l.observeCommit(2)

	err := l.TruncateSuffix(2)
	require.ErrorIs(t, err, ErrCommittedTruncation)
}

func TestLogBatchReleaseOnTruncate(t *testing.T) {
	released := 0
	batch := NewBatch(2, func() { released++ })

	l := NewLog(1)
	l.Append(1, EntryCommand, []byte("a"), batch)
	l.Append(1, EntryCommand, []byte("b"), batch)

	require.NoError(t, l.TruncateSuffix(2))
	require.Equal(t, 0, released, "one live reference remains")

	require.NoError(t, l.TruncateSuffix(1))
	require.Equal(t, 1, released, "last reference dropped releases the batch")
}

func TestLogEntriesFromCapsAtLastIndex(t *testing.T) {
	l := NewLog(1)
	l.Append(1, EntryCommand, nil, nil)
	l.Append(1, EntryCommand, nil, nil)

	require.Nil(t, l.EntriesFrom(5))
	require.Len(t, l.EntriesFrom(1), 2)
	require.Len(t, l.EntriesFrom(2), 1)
}
