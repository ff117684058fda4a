package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the sieve engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (DSNs with passwords, API keys) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// MetricsAddr exposes Prometheus metrics on this address when set,
	// e.g. ":9090". Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR" env-default:""`

	// Datasource is the database being mined for dependencies.
	Datasource DatasourceConfig `yaml:"datasource"`

	// Catalog is the engine's own PostgreSQL for persisting runs and
	// discovered dependencies. Optional; discovery works without it.
	Catalog CatalogConfig `yaml:"catalog"`

	// Discovery carries every search and validation knob.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Embeddings configures the optional semantic-similarity provider
	// used by the "name" compatibility mode.
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
}

// DatasourceConfig holds the connection settings of the mined database.
type DatasourceConfig struct {
	// Type selects the adapter: "postgres" or "sqlserver".
	Type string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"`

	// DSN is the driver-native connection string. Contains credentials,
	// so it is environment-only.
	DSN string `yaml:"-" env:"DATASOURCE_DSN"`

	// Schema restricts discovery to one namespace. Empty selects the
	// adapter default ("public" for postgres, "dbo" for sqlserver).
	Schema string `yaml:"schema" env:"DATASOURCE_SCHEMA" env-default:""`

	MaxConns              int32 `yaml:"max_conns" env:"DATASOURCE_MAX_CONNS" env-default:"8"`
	ConnectTimeoutSeconds int   `yaml:"connect_timeout_seconds" env:"DATASOURCE_CONNECT_TIMEOUT_SECONDS" env-default:"10"`
	SampleLimit           int   `yaml:"sample_limit" env:"DATASOURCE_SAMPLE_LIMIT" env-default:"1000"`
}

// ConnectTimeout returns the configured timeout as a duration.
func (c *DatasourceConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// CatalogConfig holds the engine catalog PostgreSQL configuration.
type CatalogConfig struct {
	Enabled        bool   `yaml:"enabled" env:"CATALOG_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sieve"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sieve_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MigrationsPath string `yaml:"migrations_path" env:"CATALOG_MIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *CatalogConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DiscoveryConfig holds every tunable of the discovery engine. Search
// strategies read only the knobs that apply to them.
type DiscoveryConfig struct {
	// Kind is the dependency kind to mine: fd, ind, tgd or egd.
	Kind string `yaml:"kind" env:"DISCOVERY_KIND" env-default:"ind"`

	// Strategy names the registered search strategy.
	Strategy string `yaml:"strategy" env:"DISCOVERY_STRATEGY" env-default:"bfs"`

	// CompatibilityMode selects how column pairs are screened before
	// they become graph nodes.
	CompatibilityMode string `yaml:"compatibility_mode" env:"COMPATIBILITY_MODE" env-default:"foreign_key"`

	MaxTable      int `yaml:"max_table" env:"MAX_TABLE" env-default:"3"`
	MaxVars       int `yaml:"max_vars" env:"MAX_VARS" env-default:"4"`
	MaxOccurrence int `yaml:"max_occurrence" env:"MAX_OCCURRENCE" env-default:"1"`

	SampleSize int `yaml:"sample_size" env:"SAMPLE_SIZE" env-default:"100"`
	CacheSize  int `yaml:"cache_size" env:"CACHE_SIZE" env-default:"10000"`

	SupportThreshold    float64 `yaml:"support_threshold" env:"SUPPORT_THRESHOLD" env-default:"0.01"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD" env-default:"0.90"`

	// DisjointSemantics forces distinct occurrences of one table to
	// bind distinct rows when counting support.
	DisjointSemantics bool `yaml:"disjoint_semantics" env:"DISJOINT_SEMANTICS" env-default:"false"`

	// Beam search.
	BeamWidth int `yaml:"beam_width" env:"BEAM_WIDTH" env-default:"8"`

	// Genetic search.
	PopulationSize        int     `yaml:"population_size" env:"POPULATION_SIZE" env-default:"50"`
	Generations           int     `yaml:"generations" env:"GENERATIONS" env-default:"20"`
	EliteSize             int     `yaml:"elite_size" env:"ELITE_SIZE" env-default:"2"`
	TournamentSize        int     `yaml:"tournament_size" env:"TOURNAMENT_SIZE" env-default:"3"`
	CrossoverRate         float64 `yaml:"crossover_rate" env:"CROSSOVER_RATE" env-default:"0.8"`
	MutationRate          float64 `yaml:"mutation_rate" env:"MUTATION_RATE" env-default:"0.1"`
	LocalSearchIterations int     `yaml:"local_search_iterations" env:"LOCAL_SEARCH_ITERATIONS" env-default:"10"`

	// Sampling strategies (MCTS iterations, random-walk restarts).
	Iterations         int     `yaml:"iterations" env:"ITERATIONS" env-default:"200"`
	ExplorationWeight  float64 `yaml:"exploration_weight" env:"EXPLORATION_WEIGHT" env-default:"1.41"`
	PlayoutDepth       int     `yaml:"playout_depth" env:"PLAYOUT_DEPTH" env-default:"3"`
	RestartProbability float64 `yaml:"restart_probability" env:"RESTART_PROBABILITY" env-default:"0.15"`

	// TimeBudgetSeconds stops budget-aware strategies early. Zero
	// disables the bound.
	TimeBudgetSeconds int `yaml:"time_budget_seconds" env:"TIME_BUDGET_SECONDS" env-default:"0"`

	// Parallel strategies.
	Workers   int     `yaml:"workers" env:"WORKERS" env-default:"4"`
	BatchSize int     `yaml:"batch_size" env:"BATCH_SIZE" env-default:"32"`
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT" env-default:"0"`

	// Checkpointing. Empty path disables it.
	CheckpointPath            string `yaml:"checkpoint_path" env:"CHECKPOINT_PATH" env-default:""`
	CheckpointIntervalSeconds int    `yaml:"checkpoint_interval_seconds" env:"CHECKPOINT_INTERVAL_SECONDS" env-default:"30"`

	// Seed fixes the random source of stochastic strategies. Zero seeds
	// from the clock.
	Seed int64 `yaml:"seed" env:"DISCOVERY_SEED" env-default:"0"`

	// OutputDir receives the YAML result files.
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR" env-default:"results"`
}

// TimeBudget returns the configured budget as a duration.
func (c *DiscoveryConfig) TimeBudget() time.Duration {
	return time.Duration(c.TimeBudgetSeconds) * time.Second
}

// CheckpointInterval returns the configured cadence as a duration.
func (c *DiscoveryConfig) CheckpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalSeconds) * time.Second
}

// EmbeddingsConfig holds the optional embedding provider settings.
type EmbeddingsConfig struct {
	// Endpoint is the OpenAI-compatible base URL. Empty disables the
	// embedding signal; name similarity then relies on string distance.
	Endpoint string `yaml:"endpoint" env:"EMBEDDINGS_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"EMBEDDINGS_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"EMBEDDINGS_API_KEY"` // Secret - not in YAML
}

// IsAvailable returns true if an embedding provider is configured.
func (c *EmbeddingsConfig) IsAvailable() bool {
	return c.Endpoint != ""
}

// Load reads configuration from config.yaml with environment variable
// overrides. When the file does not exist, configuration comes from the
// environment alone. The version parameter is injected at build time
// and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}
