// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Matching      MatchingConfig     `mapstructure:"matching"`
	Similarity    SimilarityConfig   `mapstructure:"similarity"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Matching Engine Configuration ---

// MatchingConfig holds the tunables of the order-matching pipeline.
type MatchingConfig struct {
	RadiusMeters     int `mapstructure:"radius_meters"`
	CandidatePoolCap int `mapstructure:"candidate_pool_cap"`
	TopK             int `mapstructure:"top_k"`
	PassTimeout      int `mapstructure:"pass_timeout"` // milliseconds

	// Radius expansion when too few agents are nearby. MinAgents=0
	// disables expansion and keeps the fixed radius.
	MinAgents        int `mapstructure:"min_agents"`
	RadiusStepMeters int `mapstructure:"radius_step_meters"`
	MaxRadiusMeters  int `mapstructure:"max_radius_meters"`

	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`

	// DescriptorPrecedence decides the modality when both sides carry
	// both an image and a text descriptor: "image" or "text".
	DescriptorPrecedence string `mapstructure:"descriptor_precedence"`
}

// SimilarityConfig holds settings for the embedding backends.
type SimilarityConfig struct {
	Text struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"text"`
	Image struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"image"`
}

// NotificationConfig holds settings for agent notification fan-out.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the metrics/pprof listener settings.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
