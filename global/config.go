package global

import (
	"os"

	"github.com/go-redis/redis_rate/v10"
	"gopkg.in/yaml.v3"
)

// Conf global config
var Conf Config

// Global rate limiter
var RateLimiter *redis_rate.Limiter

type Config struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	Scheme     string           `yaml:"scheme"`
	Mode       string           `yaml:"mode"` // debug or release
	Version    string           `yaml:"version"`
	CouchDB    CouchDBConfig    `yaml:"couchdb"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      Queue            `yaml:"queue"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Storage    StorageConfig    `yaml:"storage"`
	Mail       MailConfig       `yaml:"mail"`
	Signing    SigningConfig    `yaml:"signing"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
}

type CouchDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
}

type Queue struct {
	Concurrency int `yaml:"concurrency"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

type MailConfig struct {
	Provider    string `yaml:"provider"`
	Domain      string `yaml:"domain"`
	SendApiKey  string `yaml:"sendapikey"`
	FromAddress string `yaml:"fromAddress"`
	Subject     string `yaml:"subject"`
}

type SigningConfig struct {
	// RSA modulus size in bits for user key pairs
	KeySize int `yaml:"keySize"`
	// when true a signer may only sign after every lower-order signer has signed
	EnforceOrder bool `yaml:"enforceOrder"`
}

type DeliveryConfig struct {
	MaxAttempts       int `yaml:"maxAttempts"`
	RetrySweepMinutes int `yaml:"retrySweepMinutes"`
	TimeoutSeconds    int `yaml:"timeoutSeconds"`
}

// NewYamlConfig loads a yaml configuration file into the target config
func NewYamlConfig(path string, target *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(content, target); err != nil {
		return err
	}
	if target.Signing.KeySize == 0 {
		target.Signing.KeySize = 2048
	}
	if target.Delivery.MaxAttempts == 0 {
		target.Delivery.MaxAttempts = 3
	}
	if target.Delivery.TimeoutSeconds == 0 {
		target.Delivery.TimeoutSeconds = 60
	}
	if target.Delivery.RetrySweepMinutes == 0 {
		target.Delivery.RetrySweepMinutes = 15
	}
	return nil
}
