package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CSVStore keeps all records in a single delimited file. Every mutation
// reads the whole file, changes it in memory and writes it back through
// a temporary file.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by the file at path. The file is
// created on the first append.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	return &CSVStore{path: path}, nil
}

// Path returns the backing file location.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Append(ctx context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.save(append(records, rec))
}

func (s *CSVStore) ListAll(ctx context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CSVStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}
	kept := records[:0:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	log.WithFields(log.Fields{"id": id, "removed": len(records) - len(kept)}).Debug("deleting record")
	return true, s.save(kept)
}

func (s *CSVStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", s.path)
	}
	return nil
}

func (s *CSVStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking %s", s.path)
}

func (s *CSVStore) MigrateMissingIdentifier(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = NewID()
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.save(records)
}

func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) load() ([]models.Record, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", s.path)
	}
	records, err := DecodeCSV(bytes.NewReader(b))
	if err != nil {
		return nil, &DataCorruptionError{Source: s.path, Err: err}
	}
	return records, nil
}

func (s *CSVStore) save(records []models.Record) error {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, records); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "replacing %s", s.path)
	}
	return nil
}
