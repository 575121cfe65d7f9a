// Package treestore persists a reconstructed call forest so later runs can
// report without re-parsing the trace log.
package treestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/getsentry/cmakestat/internal/calltree"
	"github.com/getsentry/cmakestat/internal/errorutil"
)

// Bump when storedForest changes shape.
const schemaVersion uint16 = 1

type (
	// FileStore keeps one forest in a single lz4-compressed msgpack file.
	FileStore struct {
		path string
	}

	storedForest struct {
		Version   uint16           `msgpack:"version"`
		RunID     string           `msgpack:"run_id"`
		CreatedAt int64            `msgpack:"created_at"`
		Forest    *calltree.Forest `msgpack:"forest"`
	}
)

func New(path string) FileStore {
	return FileStore{path: path}
}

func (s FileStore) Path() string {
	return s.path
}

// Save writes the forest to a temporary file next to the store and renames
// it into place, so readers never observe a partially written store.
func (s FileStore) Save(f *calltree.Forest) error {
	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.New().String())
	fw, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = writeForest(fw, f)
	if err != nil {
		fw.Close()
		os.Remove(tmp)
		return err
	}
	err = fw.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	err = os.Rename(tmp, s.path)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Load reads the stored forest. A missing store yields an empty forest.
func (s FileStore) Load() (*calltree.Forest, error) {
	fr, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return calltree.NewForest(), nil
		}
		return nil, err
	}
	defer fr.Close()

	var stored storedForest
	err = msgpack.NewDecoder(lz4.NewReader(fr)).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("%s does not hold a saved call tree: %w", s.path, errorutil.ErrDataIntegrity)
	}
	if stored.Version != schemaVersion {
		return nil, fmt.Errorf("%s was saved with schema version %d, expected %d: %w",
			s.path, stored.Version, schemaVersion, errorutil.ErrDataIntegrity)
	}
	if stored.Forest == nil || len(stored.Forest.Nodes) == 0 {
		return nil, fmt.Errorf("%s holds no forest: %w", s.path, errorutil.ErrDataIntegrity)
	}
	return stored.Forest, nil
}

// Remove deletes the store. A missing store is not an error.
func (s FileStore) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func writeForest(fw *os.File, f *calltree.Forest) error {
	zw := lz4.NewWriter(fw)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	err := msgpack.NewEncoder(zw).Encode(storedForest{
		Version:   schemaVersion,
		RunID:     uuid.New().String(),
		CreatedAt: time.Now().Unix(),
		Forest:    f,
	})
	if err != nil {
		return err
	}
	return zw.Close()
}
