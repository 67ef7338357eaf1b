package store

import (
	"context"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

// SpecStore persists synthesized transformation specs per (document, label).
type SpecStore interface {
	GetSpec(ctx context.Context, documentID, label string) (types.TransformationSpec, bool, error)
	PutSpec(ctx context.Context, documentID, label string, spec types.TransformationSpec) error
}

func (s *Store) loadSpecs(documentID string) (types.TransformationSpecs, error) {
	specs := types.TransformationSpecs{}
	if err := readJSON(s.layout.DocumentFile(documentID, suffixTransformCode), &specs); err != nil {
		if isNotExist(err) {
			return types.TransformationSpecs{}, nil
		}
		return nil, err
	}
	if specs == nil {
		specs = types.TransformationSpecs{}
	}
	return specs, nil
}

func (s *Store) GetSpec(ctx context.Context, documentID, label string) (types.TransformationSpec, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.TransformationSpec{}, false, err
	}
	specs, err := s.loadSpecs(documentID)
	if err != nil {
		return types.TransformationSpec{}, false, fault.Persistence("load transform specs "+documentID, err)
	}
	spec, ok := specs[label]
	return spec, ok, nil
}

func (s *Store) PutSpec(ctx context.Context, documentID, label string, spec types.TransformationSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.layout.DocumentFile(documentID, suffixTransformCode)
	unlock := s.lockFile(path)
	defer unlock()

	specs, err := s.loadSpecs(documentID)
	if err != nil {
		return fault.Persistence("load transform specs "+documentID, err)
	}
	specs[label] = spec
	if err := writeJSONAtomic(path, specs); err != nil {
		return fault.Persistence("save transform specs "+documentID, err)
	}
	return nil
}
