package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// CONNECTHUB_POSTGRES_URL maps to postgres.url.
const EnvPrefix = "CONNECTHUB"

// Load reads configuration from defaults, an optional config file, and
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("service.name", d.Service.Name)
	v.SetDefault("service.environment", d.Service.Environment)

	v.SetDefault("http.host", d.HTTP.Host)
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("http.rate_limit_rps", d.HTTP.RateLimitRPS)
	v.SetDefault("http.rate_limit_burst", d.HTTP.RateLimitBurst)
	v.SetDefault("http.max_upload_bytes", d.HTTP.MaxUploadBytes)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("postgres.url", d.Postgres.URL)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime", d.Postgres.ConnMaxLifetime)
	v.SetDefault("postgres.conn_max_idle_time", d.Postgres.ConnMaxIdleTime)
	v.SetDefault("postgres.query_timeout", d.Postgres.QueryTimeout)

	v.SetDefault("mongo.url", d.Mongo.URL)
	v.SetDefault("mongo.database", d.Mongo.Database)
	v.SetDefault("mongo.connect_timeout", d.Mongo.ConnectTimeout)
	v.SetDefault("mongo.operation_timeout", d.Mongo.OperationTimeout)

	v.SetDefault("neo4j.uri", d.Neo4j.URI)
	v.SetDefault("neo4j.username", d.Neo4j.Username)
	v.SetDefault("neo4j.password", d.Neo4j.Password)
	v.SetDefault("neo4j.operation_timeout", d.Neo4j.OperationTimeout)

	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.max_conns", d.Redis.MaxConns)
	v.SetDefault("redis.operation_timeout", d.Redis.OperationTimeout)
	v.SetDefault("redis.connect_retries", d.Redis.ConnectRetries)
	v.SetDefault("redis.connect_backoff", d.Redis.ConnectBackoff)
	v.SetDefault("redis.backoff_ceiling", d.Redis.BackoffCeiling)

	v.SetDefault("s3.bucket", d.S3.Bucket)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.access_key_id", d.S3.AccessKeyID)
	v.SetDefault("s3.secret_access_key", d.S3.SecretAccessKey)
	v.SetDefault("s3.use_path_style", d.S3.UsePathStyle)
	v.SetDefault("s3.operation_timeout", d.S3.OperationTimeout)
	v.SetDefault("s3.presign_expiry", d.S3.PresignExpiry)

	v.SetDefault("orchestrator.feed_cache_ttl", d.Orchestrator.FeedCacheTTL)
	v.SetDefault("orchestrator.feed_page_size_max", d.Orchestrator.FeedPageSizeMax)
	v.SetDefault("orchestrator.outbox_sweep_interval", d.Orchestrator.OutboxSweepInterval)
	v.SetDefault("orchestrator.outbox_max_attempts", d.Orchestrator.OutboxMaxAttempts)
	v.SetDefault("orchestrator.probe_interval", d.Orchestrator.ProbeInterval)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}
