package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/spf13/viper"
)

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Agents     []AgentConfig    `yaml:"agents" mapstructure:"agents"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Health     HealthConfig     `yaml:"health" mapstructure:"health"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Dispatch   DispatchConfig   `yaml:"dispatch" mapstructure:"dispatch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configurazione del server HTTP
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Host string `yaml:"host" mapstructure:"host"`
}

// AuthConfig configurazione dell'autenticazione
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer        string `yaml:"issuer" mapstructure:"issuer"`
	UserRateLimit int    `yaml:"user_rate_limit" mapstructure:"user_rate_limit"` // richieste al minuto per principal
}

// StorageConfig configurazione del knowledge store.
// Backend supportati: "file", "database", "redis", "api".
type StorageConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`

	// File backend
	DataDirectory string `yaml:"data_directory" mapstructure:"data_directory"`

	// Database backend
	DatabaseType       string `yaml:"database_type" mapstructure:"database_type"` // "sqlite" o "postgres"
	DatabaseConnection string `yaml:"database_connection" mapstructure:"database_connection"`
	DatabaseMaxConns   int    `yaml:"database_max_conns" mapstructure:"database_max_conns"`

	// Redis backend
	RedisHost     string `yaml:"redis_host" mapstructure:"redis_host"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`

	// API backend
	APIBaseURL string        `yaml:"api_base_url" mapstructure:"api_base_url"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	APITimeout time.Duration `yaml:"api_timeout" mapstructure:"api_timeout"`
}

// AgentConfig descrive staticamente un agente remoto
type AgentConfig struct {
	ID                string        `yaml:"id" mapstructure:"id"`
	Type              string        `yaml:"type" mapstructure:"type"`
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	MaxCapacity       int           `yaml:"max_capacity" mapstructure:"max_capacity"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequiredCardTypes []string      `yaml:"required_card_types" mapstructure:"required_card_types"`
}

// RoutingConfig configurazione del router
type RoutingConfig struct {
	// Classifier: "keyword" (baseline) o un'implementazione pluggable
	Classifier    string              `yaml:"classifier" mapstructure:"classifier"`
	DefaultType   string              `yaml:"default_type" mapstructure:"default_type"`
	Keywords      map[string][]string `yaml:"keywords" mapstructure:"keywords"` // agent type -> keywords
	LoadWeight    float64             `yaml:"load_weight" mapstructure:"load_weight"`
	LatencyWeight float64             `yaml:"latency_weight" mapstructure:"latency_weight"`
}

// HealthConfig configurazione del circuit breaker per agente
type HealthConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	BaseCooldown     time.Duration `yaml:"base_cooldown" mapstructure:"base_cooldown"`
	MaxCooldown      time.Duration `yaml:"max_cooldown" mapstructure:"max_cooldown"`
	CheckInterval    time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
}

// CacheConfig configurazione della cache del knowledge tree
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
}

// DispatchConfig configurazione del dispatcher
type DispatchConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	DefaultTimeout  time.Duration `yaml:"default_timeout" mapstructure:"default_timeout"`
	RequestDeadline time.Duration `yaml:"request_deadline" mapstructure:"request_deadline"`
	FeedbackTimeout time.Duration `yaml:"feedback_timeout" mapstructure:"feedback_timeout"`
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Prometheus struct {
		Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
		Namespace string `yaml:"namespace" mapstructure:"namespace"`
	} `yaml:"prometheus" mapstructure:"prometheus"`
	Logging struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"logging" mapstructure:"logging"`
}

// Load carica la configurazione da file e variabili d'ambiente
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Environment variables (AGENTMESH_STORAGE_BACKEND, ecc.)
	v.SetEnvPrefix("agentmesh")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")

	// Auth defaults
	v.SetDefault("auth.issuer", "agentmesh")
	v.SetDefault("auth.user_rate_limit", 120)

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_directory", "./data/clients")
	v.SetDefault("storage.database_type", "sqlite")
	v.SetDefault("storage.database_connection", "./data/agentmesh.db")
	v.SetDefault("storage.database_max_conns", 25)
	v.SetDefault("storage.redis_host", "localhost:6379")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.api_timeout", "30s")

	// Routing defaults
	v.SetDefault("routing.classifier", "keyword")
	v.SetDefault("routing.default_type", string(models.AgentTypeContentResearch))
	v.SetDefault("routing.load_weight", 0.6)
	v.SetDefault("routing.latency_weight", 0.4)

	// Health defaults
	v.SetDefault("health.failure_threshold", 3)
	v.SetDefault("health.base_cooldown", "30s")
	v.SetDefault("health.max_cooldown", "10m")
	v.SetDefault("health.check_interval", "1m")

	// Cache defaults
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.max_entries", 1024)

	// Dispatch defaults
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.initial_backoff", "100ms")
	v.SetDefault("dispatch.max_backoff", "5s")
	v.SetDefault("dispatch.default_timeout", "10s")
	v.SetDefault("dispatch.request_deadline", "30s")
	v.SetDefault("dispatch.feedback_timeout", "10s")

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.namespace", "agentmesh")
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Backend {
	case "file", "database", "redis", "api":
	case "graph":
		return fmt.Errorf("storage backend %q is not supported yet (supported: file, database, redis, api)", c.Storage.Backend)
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Health.FailureThreshold < 1 {
		return fmt.Errorf("health.failure_threshold must be >= 1, got %d", c.Health.FailureThreshold)
	}
	if c.Health.BaseCooldown <= 0 {
		return fmt.Errorf("health.base_cooldown must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" || a.Endpoint == "" {
			return fmt.Errorf("agent config requires id and endpoint (id=%q)", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id: %s", a.ID)
		}
		seen[a.ID] = true
	}

	return nil
}

// Descriptors costruisce gli AgentDescriptor statici dalla configurazione
func (c *Config) Descriptors() []models.AgentDescriptor {
	policies := models.DefaultExposurePolicies()

	out := make([]models.AgentDescriptor, 0, len(c.Agents))
	for _, a := range c.Agents {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = c.Dispatch.DefaultTimeout
		}
		capacity := a.MaxCapacity
		if capacity <= 0 {
			capacity = 100
		}

		required := make([]models.CardType, 0, len(a.RequiredCardTypes))
		for _, ct := range a.RequiredCardTypes {
			required = append(required, models.CardType(ct))
		}

		agentType := models.AgentType(a.Type)
		out = append(out, models.AgentDescriptor{
			ID:                a.ID,
			Type:              agentType,
			Endpoint:          a.Endpoint,
			RequiredCardTypes: required,
			MaxCapacity:       capacity,
			Timeout:           timeout,
			ExposurePolicy:    policies[agentType],
		})
	}
	return out
}
