// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Scoring       ScoringConfig           `mapstructure:"scoring"`
	Evaluation    EvaluationConfig        `mapstructure:"evaluation"`
	Audit         AuditConfig             `mapstructure:"audit"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddress string `mapstructure:"http_address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Enabled reports whether an Elasticsearch cluster was configured at all.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type AuthConfig struct {
	Keycloak struct {
		URL             string `mapstructure:"url"`
		Realm           string `mapstructure:"realm"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		ScholarshipRole string `mapstructure:"scholarship_role"`
	} `mapstructure:"keycloak"`
}

// ScoringConfig selects the scorer behind the scoring engine.
type ScoringConfig struct {
	Engine string `mapstructure:"engine"` // rules | remote
	Remote struct {
		BaseURL    string `mapstructure:"base_url"`
		Path       string `mapstructure:"path"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"remote"`
}

type EvaluationConfig struct {
	PreviewTTL       int    `mapstructure:"preview_ttl"` // milliseconds
	BatchConcurrency int    `mapstructure:"batch_concurrency"`
	BatchItemTimeout int    `mapstructure:"batch_item_timeout"` // milliseconds
	ResubmitPolicy   string `mapstructure:"resubmit_policy"`    // resume-prior | restart-draft
}

type AuditConfig struct {
	ElasticsearchIndex string `mapstructure:"elasticsearch_index"`
}

type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
		SES struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
