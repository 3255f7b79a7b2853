package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// JSONBackend keeps all lessons in one JSON document keyed by user id, the
// layout of the legacy lessons_data.json. A file that fails to decode is
// treated as empty.
type JSONBackend struct {
	path string
	mu   sync.Mutex // serializes whole-file rewrites
}

// OpenJSON prepares a JSON backend at path. The file is created on first save.
func OpenJSON(path string) (*JSONBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JSONBackend{path: path}, nil
}

func (b *JSONBackend) Close() error { return nil }

// read returns the raw document. Callers hold b.mu.
func (b *JSONBackend) read() (map[string][]lessonRecord, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]lessonRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	doc := map[string][]lessonRecord{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string][]lessonRecord{}, nil
	}
	return doc, nil
}

// write replaces the file via a temp file and rename. Callers hold b.mu.
func (b *JSONBackend) write(doc map[string][]lessonRecord) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, b.path)
}

func (b *JSONBackend) LoadAll(_ context.Context) (map[string][]domain.Lesson, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	res := make(map[string][]domain.Lesson, len(doc))
	for user, rs := range doc {
		res[user] = fromRecords(rs)
	}
	return res, nil
}

func (b *JSONBackend) LoadUser(_ context.Context, user string) ([]domain.Lesson, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	rs, ok := doc[user]
	if !ok {
		return nil, nil
	}
	return fromRecords(rs), nil
}

func (b *JSONBackend) SaveUser(_ context.Context, user string, lessons []domain.Lesson) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return err
	}
	doc[user] = mergeRecords(doc[user], lessons)
	return b.write(doc)
}
