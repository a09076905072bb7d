package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nnvec/hnswdb/shard"
)

// Local is a filesystem-backed shard.Store rooted at a directory. Writes go
// through a temp-file-then-rename so a crash mid-write never leaves a
// partial shard image at its final path. Grounded on the teacher's
// persistence.SaveToFile/LoadFromFile helpers and blobstore.LocalStore.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating dir if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: dir}, nil
}

func (s *Local) path(key string) string {
	return filepath.Join(s.root, key)
}

func (s *Local) Write(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	tmpName = ""
	return nil
}

func (s *Local) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shard.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Local) Delete(_ context.Context, key string) (bool, error) {
	err := os.Remove(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Local) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	return keys, nil
}

func (s *Local) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
