package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/embers-fuse/internal/data/db"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/cluster"
	"github.com/yungbote/embers-fuse/internal/platform/envutil"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

type KeysConfig struct {
	EmbeddingDim      int     `yaml:"embedding_dim"`
	PurityThreshold   float64 `yaml:"purity_threshold"`
	MinSize           int     `yaml:"min_size"`
	SampleThreshold   int     `yaml:"sample_threshold"`
	PurityErrorPolicy string  `yaml:"purity_error_policy"`
	SamplerComponents int     `yaml:"sampler_components"`
	SamplerClusters   int     `yaml:"sampler_clusters"`
	Seed              uint64  `yaml:"seed"`
	MaxExampleValues  int     `yaml:"max_example_values"`
	EmbedBatchSize    int     `yaml:"embed_batch_size"`
	RebuildCorpus     bool    `yaml:"rebuild_corpus"`
}

type ProjectsConfig struct {
	EmbeddingDim   int     `yaml:"embedding_dim"`
	MinClusterSize int     `yaml:"min_cluster_size"`
	Eps            float64 `yaml:"eps"`
}

type TransformConfig struct {
	SampleRecords int           `yaml:"sample_records"`
	Timeout       time.Duration `yaml:"timeout"`
	FieldPrefix   string        `yaml:"field_prefix"`
	TargetsFile   string        `yaml:"targets_file"`
	Workers       int           `yaml:"workers"`
	Reset         bool          `yaml:"reset"`
}

type OracleConfig struct {
	MaxInputTokens int           `yaml:"max_input_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheSize      int           `yaml:"cache_size"`
	RedisAddr      string        `yaml:"redis_addr"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	MaxRetries     int           `yaml:"max_retries"`
}

type GeoConfig struct {
	Enabled           bool    `yaml:"enabled"`
	TargetLabel       string  `yaml:"target_label"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent"`
}

type RegistryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Config is the single configuration value for a run. Sources, lowest
// precedence first: defaults, YAML file, .env, environment.
type Config struct {
	LogMode         string `yaml:"log_mode"`
	DataDir         string `yaml:"data_dir"`
	IntegrationDir  string `yaml:"integration_dir"`
	DocumentPattern string `yaml:"document_pattern"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	// Workers bounds per-document parallelism in every stage.
	Workers int `yaml:"workers"`

	Keys      KeysConfig      `yaml:"keys"`
	Projects  ProjectsConfig  `yaml:"projects"`
	Transform TransformConfig `yaml:"transform"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Geo       GeoConfig       `yaml:"geo"`
	Registry  RegistryConfig  `yaml:"registry"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:         "development",
		DataDir:         "data",
		DocumentPattern: "PMC*",
		Workers:         1,
		Keys: KeysConfig{
			EmbeddingDim:      512,
			PurityThreshold:   0.9,
			MinSize:           10,
			SampleThreshold:   100,
			PurityErrorPolicy: string(cluster.PolicySkip),
			SamplerComponents: 50,
			SamplerClusters:   10,
			MaxExampleValues:  5,
			EmbedBatchSize:    256,
		},
		Projects: ProjectsConfig{
			EmbeddingDim:   3072,
			MinClusterSize: 10,
		},
		Transform: TransformConfig{
			SampleRecords: 10,
			Timeout:       2 * time.Second,
			FieldPrefix:   "EMBERS___",
			Workers:       1,
		},
		Oracle: OracleConfig{
			MaxInputTokens: 100000,
			Timeout:        120 * time.Second,
			CacheSize:      4096,
			CacheTTL:       7 * 24 * time.Hour,
		},
		Geo: GeoConfig{
			RequestsPerSecond: 1,
			UserAgent:         "embers-fuse",
		},
		Registry: RegistryConfig{
			Driver: db.DriverNone,
		},
	}
}

// LoadConfig resolves the configuration. path may be empty, in which case
// EMBERS_CONFIG names the optional YAML file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		path = envutil.String("EMBERS_CONFIG", "")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fault.Config("read config", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fault.Config("parse config", fmt.Errorf("%s: %w", path, err))
		}
	}
	// Missing .env is fine; existing variables are never overwritten.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if strings.TrimSpace(cfg.IntegrationDir) == "" {
		cfg.IntegrationDir = filepath.Join(cfg.DataDir, "_integration")
	}
	if strings.TrimSpace(cfg.MetricsTextfile) == "" {
		cfg.MetricsTextfile = filepath.Join(cfg.IntegrationDir, "embers.prom")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.DataDir = envutil.String("EMBERS_DATA_DIR", cfg.DataDir)
	cfg.IntegrationDir = envutil.String("EMBERS_INTEGRATION_DIR", cfg.IntegrationDir)
	cfg.DocumentPattern = envutil.String("EMBERS_DOCUMENT_PATTERN", cfg.DocumentPattern)
	cfg.MetricsTextfile = envutil.String("EMBERS_METRICS_TEXTFILE", cfg.MetricsTextfile)
	cfg.Workers = envutil.Int("EMBERS_WORKERS", cfg.Workers)

	k := &cfg.Keys
	k.EmbeddingDim = envutil.Int("EMBERS_KEYS_EMBEDDING_DIM", k.EmbeddingDim)
	k.PurityThreshold = envutil.Float("EMBERS_PURITY_THRESHOLD", k.PurityThreshold)
	k.MinSize = envutil.Int("EMBERS_MIN_SIZE", k.MinSize)
	k.SampleThreshold = envutil.Int("EMBERS_SAMPLE_THRESHOLD", k.SampleThreshold)
	k.PurityErrorPolicy = envutil.String("EMBERS_PURITY_ERROR_POLICY", k.PurityErrorPolicy)
	k.SamplerComponents = envutil.Int("EMBERS_SAMPLER_COMPONENTS", k.SamplerComponents)
	k.SamplerClusters = envutil.Int("EMBERS_SAMPLER_CLUSTERS", k.SamplerClusters)
	k.Seed = uint64(envutil.Int64("EMBERS_SEED", int64(k.Seed)))
	k.MaxExampleValues = envutil.Int("EMBERS_MAX_EXAMPLE_VALUES", k.MaxExampleValues)
	k.RebuildCorpus = envutil.Bool("EMBERS_REBUILD_CORPUS", k.RebuildCorpus)

	p := &cfg.Projects
	p.EmbeddingDim = envutil.Int("EMBERS_PROJECTS_EMBEDDING_DIM", p.EmbeddingDim)
	p.MinClusterSize = envutil.Int("EMBERS_PROJECTS_MIN_CLUSTER_SIZE", p.MinClusterSize)
	p.Eps = envutil.Float("EMBERS_PROJECTS_EPS", p.Eps)

	t := &cfg.Transform
	t.SampleRecords = envutil.Int("EMBERS_SAMPLE_RECORDS", t.SampleRecords)
	t.Timeout = envutil.Duration("EMBERS_TRANSFORM_TIMEOUT", t.Timeout)
	t.FieldPrefix = envutil.String("EMBERS_FIELD_PREFIX", t.FieldPrefix)
	t.TargetsFile = envutil.String("EMBERS_TARGETS_FILE", t.TargetsFile)
	t.Workers = envutil.Int("EMBERS_TRANSFORM_WORKERS", t.Workers)
	t.Reset = envutil.Bool("EMBERS_RESET_SAMPLES", t.Reset)

	o := &cfg.Oracle
	o.MaxInputTokens = envutil.Int("EMBERS_ORACLE_MAX_INPUT_TOKENS", o.MaxInputTokens)
	o.Timeout = envutil.Duration("EMBERS_ORACLE_TIMEOUT", o.Timeout)
	o.CacheSize = envutil.Int("EMBERS_ORACLE_CACHE_SIZE", o.CacheSize)
	o.RedisAddr = envutil.String("REDIS_ADDR", o.RedisAddr)
	o.CacheTTL = envutil.Duration("EMBERS_ORACLE_CACHE_TTL", o.CacheTTL)
	o.MaxRetries = envutil.Int("EMBERS_STAGE_MAX_RETRIES", o.MaxRetries)

	g := &cfg.Geo
	g.Enabled = envutil.Bool("EMBERS_GEO_ENABLED", g.Enabled)
	g.TargetLabel = envutil.String("EMBERS_GEO_LABEL", g.TargetLabel)
	g.BaseURL = envutil.String("EMBERS_GEO_BASE_URL", g.BaseURL)
	g.RequestsPerSecond = envutil.Float("EMBERS_GEO_RPS", g.RequestsPerSecond)
	g.UserAgent = envutil.String("EMBERS_GEO_USER_AGENT", g.UserAgent)

	cfg.Registry.Driver = envutil.String("EMBERS_REGISTRY_DRIVER", cfg.Registry.Driver)
	cfg.Registry.DSN = envutil.String("EMBERS_REGISTRY_DSN", cfg.Registry.DSN)
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data_dir is required")
	}
	if c.Keys.PurityThreshold < 0 || c.Keys.PurityThreshold > 1 {
		problems = append(problems, fmt.Sprintf("keys.purity_threshold %v outside [0,1]", c.Keys.PurityThreshold))
	}
	if c.Keys.MinSize < 1 {
		problems = append(problems, "keys.min_size must be >= 1")
	}
	if c.Keys.SampleThreshold < 1 {
		problems = append(problems, "keys.sample_threshold must be >= 1")
	}
	if !cluster.ErrorPolicy(c.Keys.PurityErrorPolicy).Valid() {
		problems = append(problems, fmt.Sprintf("keys.purity_error_policy %q unknown", c.Keys.PurityErrorPolicy))
	}
	if c.Keys.EmbeddingDim < 0 || c.Projects.EmbeddingDim < 0 {
		problems = append(problems, "embedding_dim must not be negative")
	}
	if c.Projects.MinClusterSize < 1 {
		problems = append(problems, "projects.min_cluster_size must be >= 1")
	}
	if strings.TrimSpace(c.Transform.FieldPrefix) == "" {
		problems = append(problems, "transform.field_prefix is required")
	}
	if c.Geo.Enabled && strings.TrimSpace(c.Geo.TargetLabel) == "" {
		problems = append(problems, "geo.target_label is required when geo is enabled")
	}
	switch strings.ToLower(strings.TrimSpace(c.Registry.Driver)) {
	case "", db.DriverNone, db.DriverSQLite, db.DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("registry.driver %q unknown", c.Registry.Driver))
	}
	if len(problems) > 0 {
		return fault.Config("validate config", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// PurityConfig is the clustering configuration for the key hierarchy.
func (c Config) PurityConfig() cluster.PurityConfig {
	return cluster.PurityConfig{
		Threshold:       c.Keys.PurityThreshold,
		MinSize:         c.Keys.MinSize,
		SampleThreshold: c.Keys.SampleThreshold,
		ErrorPolicy:     cluster.ErrorPolicy(c.Keys.PurityErrorPolicy),
	}
}
