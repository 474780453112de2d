package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-service selection
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Blob       BlobConfig       `json:"blob"`
	Scoring    ScoringConfig    `json:"scoring"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ScoringConfig holds scoring pipeline settings.
type ScoringConfig struct {
	// LookbackDays bounds the evidence window the aggregator scans.
	// 0 means full history.
	LookbackDays int `json:"lookbackDays"`

	// RuleCacheTTL is how long the active rule set may be served from
	// cache, in seconds. Rule updates invalidate eagerly; this bounds
	// staleness across processes.
	RuleCacheTTL int `json:"ruleCacheTtl"`

	// TopRiskLimit is the number of agents returned by the admin
	// high-risk listing.
	TopRiskLimit int `json:"topRiskLimit"`

	// AsyncRecompute moves pipeline runs off the request path onto the
	// event bus worker. Triggers then only publish.
	AsyncRecompute bool `json:"asyncRecompute"`
}

// BlobConfig holds evidence file storage settings.
type BlobConfig struct {
	// Type is the store type: "local" or "gcs"
	Type string `json:"type"`

	// Local disk settings (Community tier)
	LocalDir string `json:"localDir"`

	// Google Cloud Storage settings (Pro tier)
	GCSBucket string `json:"gcsBucket"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the single-node tier: SQLite + channels + local disk
	TierCommunity Tier = "community"

	// TierPro is the clustered tier: PostgreSQL + NATS + Redis + GCS
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Blob: BlobConfig{
			Type:     "local",
			LocalDir: "./uploads",
		},
		Scoring: ScoringConfig{
			LookbackDays: 0, // full history
			RuleCacheTTL: 10,
			TopRiskLimit: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Blob = BlobConfig{
		Type:      "gcs",
		GCSBucket: "kestrel-evidence",
	}
	cfg.Scoring.AsyncRecompute = true
	cfg.Tracing.Enabled = true
	return cfg
}
