package app

import (
	"fmt"

	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/geocode"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
	"github.com/yungbote/embers-fuse/internal/platform/openai"
	"github.com/yungbote/embers-fuse/internal/platform/oraclecache"
)

type Clients struct {
	AI     openai.Client
	Cache  oraclecache.Cache
	Oracle *oracle.LLM
	Geo    geocode.CountryResolver
}

// wireClients builds the external clients. A client that cannot be built is
// left nil and its error returned so the stages needing it report why.
func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, clientErrors) {
	log.Info("Wiring clients...")
	var out Clients
	errs := clientErrors{}

	local, err := oraclecache.NewMemory(cfg.Oracle.CacheSize)
	if err != nil {
		log.Warn("oracle memory cache disabled", "error", err)
	}
	layered := oraclecache.Layered{Local: local}
	if cfg.Oracle.RedisAddr != "" {
		shared, err := oraclecache.NewRedis(log, cfg.Oracle.RedisAddr, cfg.Oracle.CacheTTL)
		if err != nil {
			log.Warn("shared oracle cache unavailable (continuing without)", "addr", cfg.Oracle.RedisAddr, "error", err)
		} else {
			layered.Shared = shared
		}
	}
	out.Cache = layered

	ai, err := openai.NewClient(log, metrics)
	if err != nil {
		log.Warn("openai client unavailable", "error", err)
		errs.ai = fmt.Errorf("openai client: %w", err)
	} else {
		out.AI = ai
		llm, err := oracle.NewLLM(oracle.LLMDeps{
			Log:     log,
			Client:  ai,
			Cache:   out.Cache,
			Metrics: metrics,
		}, oracle.Options{
			Timeout:        cfg.Oracle.Timeout,
			MaxInputTokens: cfg.Oracle.MaxInputTokens,
		})
		if err != nil {
			errs.ai = fmt.Errorf("oracle: %w", err)
		} else {
			out.Oracle = llm
		}
	}

	geo, err := geocode.NewNominatim(log, geocode.Options{
		BaseURL:           cfg.Geo.BaseURL,
		UserAgent:         cfg.Geo.UserAgent,
		RequestsPerSecond: cfg.Geo.RequestsPerSecond,
	})
	if err != nil {
		log.Warn("geocoder unavailable", "error", err)
		errs.geo = fmt.Errorf("geocoder: %w", err)
	} else {
		out.Geo = geo
	}
	return out, errs
}

type clientErrors struct {
	ai  error
	geo error
}
