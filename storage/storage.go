// Package storage provides the local record store backing the wallet: the
// encrypted wallet blob, per-origin authorization records, and the optional
// session record each live in their own bucket.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is a bucketed key-value store. Put fully replaces the previous value
// for a key; implementations must make the replacement atomic so a crash
// mid-write never leaves a partially written record.
type Store interface {
	Put(bucket, key string, value []byte) error
	Get(bucket, key string) ([]byte, error)
	Delete(bucket, key string) error
	List(bucket string) ([]string, error)
}
