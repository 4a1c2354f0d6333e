package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// LocalStorage is an in-memory persistence keeping values as marshaled json.
// Useful for tests and dry runs where nothing should touch the disk.
type LocalStorage struct {
	files map[Key]string
	mutex *sync.RWMutex
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		files: make(map[Key]string),
		mutex: new(sync.RWMutex),
	}
}

// LocalShard creates in-memory storage for every shard.
func LocalShard() Shard {
	return func(shard string) (Persistence, error) {
		return NewLocalStorage(), nil
	}
}

func (l *LocalStorage) Store(k Key, value interface{}) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value: %w", err)
	}

	l.files[k] = string(bb)
	return nil
}

func (l *LocalStorage) Load(k Key, value interface{}) error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if v, ok := l.files[k]; ok {
		err := json.Unmarshal([]byte(v), value)
		if err != nil {
			return fmt.Errorf("could not unmarshal value: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no entry for '%+v': %w", k, NotFoundErr)
}
