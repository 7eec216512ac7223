package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything both services need. Values come from the
// environment (or a local .env), with defaults matching a single-node
// development setup.
type Config struct {
	ScyllaHosts    string `mapstructure:"SCYLLA_HOSTS"`
	ScyllaKeyspace string `mapstructure:"SCYLLA_KEYSPACE"`
	PostgresDSN    string `mapstructure:"POSTGRES_DSN"`
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string `mapstructure:"KAFKA_TOPIC"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	APIAddr        string `mapstructure:"API_ADDR"`
	GatewayAddr    string `mapstructure:"GATEWAY_ADDR"`
}

func (c *Config) ScyllaHostList() []string {
	return strings.Split(c.ScyllaHosts, ",")
}

func (c *Config) KafkaBrokerList() []string {
	return strings.Split(c.KafkaBrokers, ",")
}

// Load reads configuration from .env and the environment.
func Load() *Config {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SCYLLA_HOSTS", "localhost:9042")
	viper.SetDefault("SCYLLA_KEYSPACE", "chat")
	viper.SetDefault("POSTGRES_DSN", "host=localhost user=portal password=portal dbname=portal port=5432 sslmode=disable")
	viper.SetDefault("KAFKA_BROKERS", "localhost:19092")
	viper.SetDefault("KAFKA_TOPIC", "chat-events")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "dev_secret_change_me")
	viper.SetDefault("API_ADDR", ":8081")
	viper.SetDefault("GATEWAY_ADDR", ":8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
	return &cfg
}
