package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Groq     GroqConfig     `yaml:"groq"`
	HeyGen   HeyGenConfig   `yaml:"heygen"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// GroqConfig holds script-generation service settings. The API key comes
// from the GROQ_API_KEY environment variable, never from the config file.
type GroqConfig struct {
	APIKey        string        `yaml:"-"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// HeyGenConfig holds avatar render service settings. The API key comes from
// the HEYGEN_API_KEY environment variable.
type HeyGenConfig struct {
	APIKey       string        `yaml:"-"`
	BaseURL      string        `yaml:"base_url"`
	AvatarID     string        `yaml:"avatar_id"`
	VoiceID      string        `yaml:"voice_id"`
	VideoWidth   int           `yaml:"video_width"`
	VideoHeight  int           `yaml:"video_height"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RabbitMQConfig holds the optional terminal job event broker configuration.
// Events are disabled when Enabled is false.
type RabbitMQConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	VHost              string        `yaml:"vhost"`
	ExchangeName       string        `yaml:"exchange_name"`
	ExchangeType       string        `yaml:"exchange_type"`
	RoutingKey         string        `yaml:"routing_key"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	Heartbeat          time.Duration `yaml:"heartbeat"`
	PublishRetries     int           `yaml:"publish_retries"`
	PublishRetryDelay  time.Duration `yaml:"publish_retry_delay"`
	PublishBackoffMult float64       `yaml:"publish_backoff_multiplier"`
}

// JobsConfig holds job orchestration settings
type JobsConfig struct {
	Concurrency int `yaml:"concurrency"`
	// MaxAgeHours is documented retention intent; no sweep is implemented.
	MaxAgeHours int `yaml:"max_age_hours"`
}

// Load reads and parses the configuration file, then applies environment
// variable overrides for secrets.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	config.HeyGen.APIKey = os.Getenv("HEYGEN_API_KEY")
	if password := os.Getenv("RABBITMQ_PASSWORD"); password != "" {
		config.RabbitMQ.Password = password
	}

	return &config, nil
}

// Validate checks if the configuration is valid. API keys are checked at
// request time so the server can start without them and report the missing
// collaborator to the caller.
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Groq.BaseURL == "" {
		return fmt.Errorf("groq base_url is required")
	}

	if c.Groq.Model == "" {
		return fmt.Errorf("groq model is required")
	}

	if c.HeyGen.BaseURL == "" {
		return fmt.Errorf("heygen base_url is required")
	}

	if c.Jobs.Concurrency <= 0 {
		return fmt.Errorf("jobs concurrency must be greater than 0")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required when rabbitmq is enabled")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.ExchangeName == "" {
			return fmt.Errorf("rabbitmq exchange_name is required when rabbitmq is enabled")
		}
	}

	return nil
}
