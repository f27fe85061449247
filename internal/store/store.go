// Package store persists records and pipeline checkpoints. The Redis
// implementation backs the service deployment; the memory implementation
// backs tests and single-shot runs.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

// Checkpoint marks pipeline progress so an interrupted batch resumes where
// it stopped instead of starting over.
type Checkpoint struct {
	Stage     string
	Processed int
	LastImage string
	UpdatedAt time.Time
}

// Store is the persistence contract for records and checkpoints.
type Store interface {
	// Put upserts the records. A record is keyed by its document key; a
	// re-run overwrites the previous state in full.
	Put(ctx context.Context, recs ...*record.Record) error
	// Get returns the record for a document key, or record.ErrNotFound.
	Get(ctx context.Context, key string) (*record.Record, error)
	// List returns every stored record sorted by document key.
	List(ctx context.Context) ([]*record.Record, error)

	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	// LoadCheckpoint returns the stored checkpoint; ok is false when no
	// checkpoint has been written.
	LoadCheckpoint(ctx context.Context) (cp Checkpoint, ok bool, err error)
	ClearCheckpoint(ctx context.Context) error

	Ping(ctx context.Context) error
	Close()
}

// Hash field names shared by the implementations. Record fields are stored
// under their schema names; per-field flags carry a prefix so the two sets
// never collide.
const (
	hashImage       = "Image"
	hashFinalRev    = "FINAL_REV"
	hashRevDate     = "REV_DATE"
	hashSheetStatus = "BLAD_STATUS"
	hashRevStatus   = "REV_STATUS"
	flagPrefix      = "flag:"
)

func encodeRecord(rec *record.Record) map[string]string {
	m := make(map[string]string, len(record.FieldNames)+8)
	m[hashImage] = rec.Image
	for _, name := range record.FieldNames {
		m[name] = rec.Fields[name]
	}
	m[hashFinalRev] = rec.FinalRev
	m[hashRevDate] = rec.RevDate
	m[hashSheetStatus] = string(rec.SheetStatus)
	m[hashRevStatus] = string(rec.RevStatus)
	for _, f := range rec.FlaggedFields() {
		m[flagPrefix+f] = rec.FlagReason(f)
	}
	return m
}

func decodeRecord(m map[string]string) (*record.Record, error) {
	fields := make(map[string]string, len(record.FieldNames))
	for _, name := range record.FieldNames {
		fields[name] = m[name]
	}
	rec, err := record.New(m[hashImage], fields)
	if err != nil {
		return nil, err
	}
	rec.FinalRev = m[hashFinalRev]
	rec.RevDate = m[hashRevDate]
	if m[hashSheetStatus] == string(record.StatusError) {
		rec.SheetStatus = record.StatusError
	}
	if m[hashRevStatus] == string(record.StatusError) {
		rec.RevStatus = record.StatusError
	}
	for k, reason := range m {
		if field, ok := strings.CutPrefix(k, flagPrefix); ok {
			rec.Flag(field, reason)
		}
	}
	return rec, nil
}
