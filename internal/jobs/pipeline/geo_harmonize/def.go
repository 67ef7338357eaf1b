package geo_harmonize

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/platform/geocode"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const StageName = "harmonize-geo"

type Options struct {
	TargetLabel string
	FieldPrefix string
	Workers     int
}

type Pipeline struct {
	log   *logger.Logger
	files *store.Store
	geo   geocode.CountryResolver
	opts  Options
}

func New(baseLog *logger.Logger, files *store.Store, geo geocode.CountryResolver, opts Options) *Pipeline {
	return &Pipeline{
		log:   baseLog.With("job", StageName),
		files: files,
		geo:   geo,
		opts:  opts,
	}
}

func (p *Pipeline) Type() string { return StageName }
