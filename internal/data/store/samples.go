package store

import (
	"context"
	"fmt"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

// SampleStore owns the authoritative aligned copy of each document's records.
// Save is a full overwrite.
type SampleStore interface {
	HasSamples(documentID string) bool
	Load(ctx context.Context, documentID string) ([]types.SampleRecord, error)
	Save(ctx context.Context, documentID string, records []types.SampleRecord) error
}

func (s *Store) HasSamples(documentID string) bool {
	return exists(s.layout.DocumentFile(documentID, suffixSamplesIntegrated))
}

func (s *Store) Load(ctx context.Context, documentID string) ([]types.SampleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []types.SampleRecord
	if err := readJSON(s.layout.DocumentFile(documentID, suffixSamplesIntegrated), &records); err != nil {
		return nil, fault.Persistence("load samples "+documentID, err)
	}
	return records, nil
}

func (s *Store) Save(ctx context.Context, documentID string, records []types.SampleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []types.SampleRecord{}
	}
	if err := writeJSONAtomic(s.layout.DocumentFile(documentID, suffixSamplesIntegrated), records); err != nil {
		return fault.Persistence("save samples "+documentID, err)
	}
	return nil
}

// LoadRawSamples reads the records as ingested, before any alignment.
func (s *Store) LoadRawSamples(ctx context.Context, documentID string) ([]types.SampleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []types.SampleRecord
	path := s.layout.DocumentFile(documentID, suffixSamplesRaw)
	if err := readJSON(path, &records); err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fault.Persistence("load raw samples "+documentID, err)
	}
	return records, nil
}

// SeedSamples creates the aligned copy from the raw records when it does not
// exist yet, or unconditionally when reset is set. It reports whether a copy
// was made.
func (s *Store) SeedSamples(ctx context.Context, documentID string, reset bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	src := s.layout.DocumentFile(documentID, suffixSamplesRaw)
	dst := s.layout.DocumentFile(documentID, suffixSamplesIntegrated)
	if !exists(src) {
		return false, nil
	}
	if exists(dst) && !reset {
		return false, nil
	}
	if err := copyFile(src, dst); err != nil {
		return false, fault.Persistence("seed samples "+documentID, fmt.Errorf("copy %s: %w", src, err))
	}
	return true, nil
}
