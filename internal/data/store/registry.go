package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

func (s *Store) SaveIntegration(ctx context.Context, integ types.Integration, variations types.KeyNameVariations) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if integ == nil {
		integ = types.Integration{}
	}
	if variations == nil {
		variations = types.KeyNameVariations{}
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileIntegration), integ); err != nil {
		return fault.Persistence("save integration", err)
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileKeyNameVariations), variations); err != nil {
		return fault.Persistence("save key name variations", err)
	}
	return nil
}

func (s *Store) LoadIntegration(ctx context.Context) (types.Integration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	integ := types.Integration{}
	if err := readJSON(s.layout.IntegrationFile(fileIntegration), &integ); err != nil {
		return nil, fault.Persistence("load integration", err)
	}
	return integ, nil
}

func (s *Store) LoadKeyNameVariations(ctx context.Context) (types.KeyNameVariations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := types.KeyNameVariations{}
	if err := readJSON(s.layout.IntegrationFile(fileKeyNameVariations), &v); err != nil {
		return nil, fault.Persistence("load key name variations", err)
	}
	return v, nil
}

// LoadTargets reads a label -> instructions file. YAML and JSON are both accepted.
// An empty path means "no explicit targets" and returns nil.
func LoadTargets(path string) (map[string]types.AlignTarget, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Config("load targets", err)
	}
	out := map[string]types.AlignTarget{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fault.Config("load targets", fmt.Errorf("parse %s: %w", path, err))
	}
	return out, nil
}

// GeoDict maps a raw location string to a country; nil means unresolvable.
type GeoDict map[string]*string

func (s *Store) LoadGeoDict(ctx context.Context) (GeoDict, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	d := GeoDict{}
	if err := readJSON(s.layout.IntegrationFile(fileGeoLocDict), &d); err != nil {
		if isNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fault.Persistence("load geo dict", err)
	}
	return d, true, nil
}

func (s *Store) SaveGeoDict(ctx context.Context, d GeoDict) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == nil {
		d = GeoDict{}
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileGeoLocDict), d); err != nil {
		return fault.Persistence("save geo dict", err)
	}
	return nil
}
