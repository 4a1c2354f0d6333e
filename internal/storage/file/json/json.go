package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/velatrade/vela/internal/storage"
)

// Blob persists values as one json file per key under a base directory.
type Blob struct {
	dir string
}

// NewBlob creates a file backed persistence rooted at the given directory.
func NewBlob(dir string) *Blob {
	return &Blob{dir: dir}
}

// BlobShard creates a file backed storage per shard.
func BlobShard(dir string) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		return NewBlob(filepath.Join(dir, shard)), nil
	}
}

func (b *Blob) Store(k storage.Key, value interface{}) error {
	return Save(b.dir, fmt.Sprintf("%s.json", k.Path()), value)
}

func (b *Blob) Load(k storage.Key, value interface{}) error {
	return Load(b.dir, fmt.Sprintf("%s.json", k.Path()), value)
}

// Save saves the given json struct into the given path with the provided filename.
func Save(filePath string, fileName string, value interface{}) error {
	info, err := os.Stat(filePath)
	if err != nil {
		err := os.MkdirAll(filePath, os.ModePerm)
		if err != nil {
			return fmt.Errorf("could not make dir: %s: %w", filePath, err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path given is not a dir: %s", filePath)
	}

	p := filepath.Join(filePath, fileName)
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("could not create file '%s': %w", p, err)
	}
	defer f.Close()

	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value for '%s': %w", p, err)
	}

	_, err = f.Write(bb)
	if err != nil {
		return fmt.Errorf("could not write bytes to file '%s': %w", p, err)
	}

	return nil
}

// Load loads the payload from the given filePath and fileName.
func Load(filePath string, fileName string, value interface{}) error {
	p := filepath.Join(filePath, fileName)

	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("could not read file '%s' %s: %w", p, err.Error(), storage.NotFoundErr)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("could not unmarshal '%s': %w", p, storage.CouldNotLoadErr)
	}

	return nil
}
