// Package audit implements the durable share/accept audit log of
// SPEC_FULL.md §4.10: an optional bbolt-backed record of every share this
// miner has submitted, independent of the CRT Set, which remains (per
// spec §6) the only state that affects mining outcomes across runs. This
// is operator diagnostics, not mining state.
//
// Grounded on guiperry-HASHER's checkpoint store
// (1_DATA_MINER/internal/checkpoint/checkpoint.go): one bbolt.DB, one
// bucket, bbolt.Update/View closures, JSON-encoded records keyed by a
// byte string.
package audit

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/go-primegap/miner/internal/errs"
)

var sharesBucket = []byte("shares")

// Record is the diagnostic record stored per share, keyed by
// <epoch-hash><nonce>.
type Record struct {
	Time     time.Time `json:"time"`
	Merit    float64   `json:"merit"`
	Accepted bool      `json:"accepted"`
	Stale    bool      `json:"stale"`
}

// Log wraps a single bbolt.DB opened at the path given by --audit-db. The
// zero value is not usable; construct with Open.
type Log struct {
	db *bbolt.DB
}

// Open creates (or opens) the audit database at path and ensures the
// shares bucket exists.
func Open(path string) (*Log, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &errs.FileFormatError{Path: path, Msg: "audit: cannot open database: " + err.Error()}
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sharesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &errs.FileFormatError{Path: path, Msg: "audit: cannot create shares bucket: " + err.Error()}
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// key returns the <epoch-hash><nonce> byte key spec §4.10 specifies.
func key(epochHash [32]byte, nonce uint32) []byte {
	k := make([]byte, 36)
	copy(k, epochHash[:])
	k[32] = byte(nonce >> 24)
	k[33] = byte(nonce >> 16)
	k[34] = byte(nonce >> 8)
	k[35] = byte(nonce)
	return k
}

// Record writes r under the key derived from epochHash/nonce, overwriting
// any prior record for the same (epoch, nonce) pair.
func (l *Log) Record(epochHash [32]byte, nonce uint32, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sharesBucket)
		return b.Put(key(epochHash, nonce), data)
	})
}

// Get returns the record for (epochHash, nonce), or nil if none was
// recorded.
func (l *Log) Get(epochHash [32]byte, nonce uint32) (*Record, error) {
	var rec *Record
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sharesBucket)
		data := b.Get(key(epochHash, nonce))
		if data == nil {
			return nil
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	return rec, err
}

// Count returns the total number of recorded shares.
func (l *Log) Count() (int, error) {
	n := 0
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sharesBucket)
		return b.ForEach(func(k, v []byte) error {
			n++
			return nil
		})
	})
	return n, err
}
