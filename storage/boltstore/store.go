// Package boltstore is the reference durable persistence collaborator
// for raft.Io: term/vote state and the log tail, backed by a single
// bbolt file.
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/dmaxwell/raft"
)

var (
	metaBucket = []byte("meta")
	logBucket  = []byte("log")

	termKey  = []byte("term")
	voteKey  = []byte("vote")
	startKey = []byte("start_index")
)

// Store is a bbolt-backed implementation of the persistence facet of
// raft.Io (Load, Bootstrap, SetTerm, SetVote, Append). It does not by
// itself implement Send/Start/Stop, which are the concern of
// transport/rafthttp; cmd/raftd composes the two into a full raft.Io.
type Store struct {
	db *bbolt.DB
}

// entryRecord is the on-disk encoding of one log entry. The batch
// handle is runtime-only and is never persisted; entries loaded back
// from disk always have a nil Batch.
type entryRecord struct {
	Term uint64
	Type raft.EntryType
	Data []byte
}

// Open opens (creating if necessary) the bbolt file at path and
// ensures the meta and log buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(logBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the durable (term, votedFor, startIndex, entries)
// tuple, per raft.Io.Load. An empty store (never bootstrapped) yields
// term 0, votedFor 0, startIndex 1, and no entries.
func (s *Store) Load() (term uint64, votedFor uint64, startIndex uint64, entries []raft.Entry, err error) {
	startIndex = 1
	err = s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if v := meta.Get(termKey); v != nil {
			term = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(voteKey); v != nil {
			votedFor = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(startKey); v != nil {
			startIndex = binary.BigEndian.Uint64(v)
		}

		log := tx.Bucket(logBucket)
		return log.ForEach(func(k, v []byte) error {
			var rec entryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode entry at key %x: %w", k, err)
			}
			entries = append(entries, raft.Entry{
				Index: binary.BigEndian.Uint64(k),
				Term:  rec.Term,
				Type:  rec.Type,
				Data:  rec.Data,
			})
			return nil
		})
	})
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("boltstore: load: %w", err)
	}
	return term, votedFor, startIndex, entries, nil
}

// Bootstrap initializes a pristine store with a single Configuration
// entry at index 1, term 1, per raft.Io.Bootstrap.
func (s *Store) Bootstrap(cfg *raft.Configuration) error {
	servers := cfg.Servers()
	data, err := json.Marshal(struct {
		Servers []raft.Server `json:"servers"`
	}{Servers: servers})
	if err != nil {
		return fmt.Errorf("boltstore: encode bootstrap configuration: %w", err)
	}
	rec := entryRecord{Term: 1, Type: raft.EntryConfiguration, Data: data}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("boltstore: encode bootstrap entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if err := putUint64(meta, termKey, 1); err != nil {
			return err
		}
		if err := putUint64(meta, startKey, 1); err != nil {
			return err
		}
		log := tx.Bucket(logBucket)
		return log.Put(keyFor(1), encoded)
	})
}

// SetTerm durably persists the current term.
func (s *Store) SetTerm(term uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putUint64(tx.Bucket(metaBucket), termKey, term)
	})
}

// SetVote durably persists the candidate voted for in the current term.
func (s *Store) SetVote(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putUint64(tx.Bucket(metaBucket), voteKey, id)
	})
}

// Append durably appends entries in a single transaction, then invokes
// done once they are safely on disk. Matches the raft.Io.Append
// signature; the done callback always fires before Append returns,
// since bbolt commits synchronously.
func (s *Store) Append(entries []raft.Entry, done func(raft.Status)) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		log := tx.Bucket(logBucket)
		for _, e := range entries {
			rec := entryRecord{Term: e.Term, Type: e.Type, Data: e.Data}
			encoded, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", e.Index, err)
			}
			if err := log.Put(keyFor(e.Index), encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		done(raft.StatusError)
		return
	}
	done(raft.StatusOK)
}

// TruncateSuffix durably removes every log entry at or above index,
// mirroring the in-memory Log.TruncateSuffix operation so the
// on-disk tail never diverges from the core's view after a repair.
func (s *Store) TruncateSuffix(index uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		log := tx.Bucket(logBucket)
		c := log.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(keyFor(index)); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := log.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func keyFor(index uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, index)
	return k
}

func putUint64(b *bbolt.Bucket, key []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return b.Put(key, buf)
}
