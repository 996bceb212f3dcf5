// Package kvdb defines the key-value store interface backing contract
// storage. Two implementations exist: a map based store for scenario runs,
// which must be cheap to reset, and a leveldb backed store for persisting
// fixture state across tool invocations.
package kvdb

import "errors"

// ErrNotFound is returned if a key is not found in the database.
var ErrNotFound = errors.New("kvdb: not found")

// KeyValueReader wraps the Has and Get method of a backing data store.
type KeyValueReader interface {
	// Has retrieves if a key is present in the key-value data store.
	Has(key []byte) (bool, error)

	// Get retrieves the given key if it's present in the key-value data store.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete method of a backing data store.
type KeyValueWriter interface {
	// Put inserts the given value into the key-value data store.
	Put(key []byte, value []byte) error

	// Delete removes the key from the key-value data store.
	Delete(key []byte) error
}

// Iterator iterates over a database's key/value pairs in ascending key
// order. A released iterator must not be used any further.
type Iterator interface {
	// Next moves the iterator to the next key/value pair. It returns whether
	// the iterator is exhausted.
	Next() bool

	// Key returns the key of the current key/value pair, or nil if done.
	Key() []byte

	// Value returns the value of the current key/value pair, or nil if done.
	Value() []byte

	// Release releases associated resources.
	Release()
}

// KeyValueStore contains all the methods required to allow handling
// contract storage.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter

	// NewIterator creates an iterator over a subset of database content with
	// a particular key prefix.
	NewIterator(prefix []byte) Iterator

	// Close closes the store and releases any held resources.
	Close() error
}
