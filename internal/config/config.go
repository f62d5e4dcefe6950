package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Output backends for blurred images.
const (
	OutputFile  = "file"
	OutputMinio = "minio"
)

// Config holds the main configuration for the application.
type Config struct {
	Worker  Worker  `mapstructure:"worker"`
	Storage Storage `mapstructure:"storage"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Retry   Retry   `mapstructure:"retry"`
	Metrics Metrics `mapstructure:"metrics"`
}

// Worker holds configuration of the blur worker.
type Worker struct {
	Delay    time.Duration `mapstructure:"delay"` // Simulated latency before the work starts
	Messages Messages      `mapstructure:"messages"`
}

// Messages holds the user-facing status and log strings.
type Messages struct {
	Title             string `mapstructure:"title"`
	BlurringImage     string `mapstructure:"blurring_image"`
	InvalidInputURI   string `mapstructure:"invalid_input_uri"`
	ErrorApplyingBlur string `mapstructure:"error_applying_blur"`
	Output            string `mapstructure:"output"` // Format string taking the output locator
}

// Storage holds configuration for the file storage backends.
type Storage struct {
	Output  string `mapstructure:"output"`   // "file" or "minio"
	BaseDir string `mapstructure:"base_dir"` // Base directory for file outputs
	Minio   Minio  `mapstructure:"minio"`
}

// Minio holds configuration for the S3-compatible object storage.
type Minio struct {
	Enabled    bool   `mapstructure:"enabled"` // Read s3:// inputs; implied by output "minio"
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID       string   `mapstructure:"group_id"`       // Consumer group ID
	RequestsTopic string   `mapstructure:"requests_topic"` // Topic work requests are consumed from
	ResultsTopic  string   `mapstructure:"results_topic"`  // Topic work results are published to
	StatusTopic   string   `mapstructure:"status_topic"`   // Topic status notifications are published to
	Brokers       []string `mapstructure:"brokers"`        // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Metrics holds configuration of the metrics HTTP server.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// setDefaults registers the values used when neither the file nor the
// environment provides one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.delay", 3*time.Second)
	v.SetDefault("worker.messages.title", "WorkRequest Starting")
	v.SetDefault("worker.messages.blurring_image", "Blurring image")
	v.SetDefault("worker.messages.invalid_input_uri", "Invalid input uri")
	v.SetDefault("worker.messages.error_applying_blur", "Error applying blur")
	v.SetDefault("worker.messages.output", "Output is %s")

	v.SetDefault("storage.output", OutputFile)
	v.SetDefault("storage.base_dir", "./data")

	v.SetDefault("kafka.group_id", "blur-worker")
	v.SetDefault("kafka.requests_topic", "blur-requests")
	v.SetDefault("kafka.results_topic", "blur-results")
	v.SetDefault("kafka.status_topic", "blur-status")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)

	v.SetDefault("metrics.addr", ":9090")
}

// bindEnv binds secrets and deployment-specific values to environment variables.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"storage.minio.access_key": "MINIO_ACCESS_KEY",
		"storage.minio.secret_key": "MINIO_SECRET_KEY",
		"storage.minio.endpoint":   "MINIO_ENDPOINT",
		"kafka.brokers":            "KAFKA_BROKERS",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}

	return nil
}

// Load reads the configuration from the YAML file at path and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Str("path", path).Msg("failed to load config")
	}

	return cfg
}
