package storage

import (
	"errors"
	"fmt"
)

const (
	LedgerDir = "ledger"
	BookDir   = "book"
	AuditDir  = "audit"
)

var (
	NotFoundErr     = errors.New("not found")
	CouldNotLoadErr = errors.New("could not load")
)

// IsNotFound returns true when the error means the key simply does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, NotFoundErr)
}

// Key is the storage key for a general implementation.
type Key struct {
	Hash  int64  `json:"hash"`
	Pair  string `json:"pair"`
	Label string `json:"label"`
}

func (k Key) Path() string {
	return fmt.Sprintf("%s_%v_%s", k.Pair, k.Hash, k.Label)
}

// Persistence stores and retrieves json-serializable values by key.
type Persistence interface {
	Store(k Key, value interface{}) error
	Load(k Key, value interface{}) error
}

// Shard creates a new storage implementation for the given shard.
type Shard func(shard string) (Persistence, error)

// VoidStorage is a noop storage.
type VoidStorage struct {
}

// NewVoidStorage creates a new noop storage.
func NewVoidStorage() *VoidStorage {
	return &VoidStorage{}
}

func (d VoidStorage) Store(k Key, value interface{}) error {
	return nil
}

func (d VoidStorage) Load(k Key, value interface{}) error {
	return fmt.Errorf("not found '%v': %w", k, NotFoundErr)
}

// VoidShard creates a new noop shard.
func VoidShard() Shard {
	return func(shard string) (Persistence, error) {
		return NewVoidStorage(), nil
	}
}
