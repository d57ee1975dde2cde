package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Bus       BusConfig       `yaml:"bus"`
	Payment   PaymentConfig   `yaml:"payment"`
	Inventory []InventorySeed `yaml:"inventory"`
}

type HTTPConfig struct {
	Port int `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type PostgresConfig struct {
	Port    string `yaml:"port"`
	Host    string `yaml:"host"`
	DbName  string `yaml:"db_name"`
	User    string `yaml:"user"`
	Pwd     string `yaml:"password"`
	SslMode string `yaml:"sslmode"`
}

type KafkaConfig struct {
	BrokerList  []string `yaml:"broker_list"`
	TopicPrefix string   `yaml:"topic_prefix" env-default:"saga."`
}

// BusConfig bounds redelivery of an event whose handler returned an error.
type BusConfig struct {
	RedeliveryAttempts int           `yaml:"redelivery_attempts" env-default:"3"`
	RedeliveryDelay    time.Duration `yaml:"redelivery_delay" env-default:"100ms"`
}

// PaymentConfig parameterizes the simulated payment attempt. Injected, not
// hardcoded, so tests can run deterministic scenarios.
type PaymentConfig struct {
	ProcessingDelay  time.Duration `yaml:"processing_delay" env:"PAYMENT_PROCESSING_DELAY" env-default:"0s"`
	TimeoutThreshold time.Duration `yaml:"timeout_threshold" env:"PAYMENT_TIMEOUT_THRESHOLD" env-default:"30s"`
	EnableTimeout    bool          `yaml:"enable_timeout" env:"PAYMENT_ENABLE_TIMEOUT" env-default:"false"`
	FailureRate      float64       `yaml:"failure_rate" env:"PAYMENT_FAILURE_RATE" env-default:"0.0"`
	MaxConcurrent    int           `yaml:"max_concurrent" env:"PAYMENT_MAX_CONCURRENT" env-default:"16"`
}

type InventorySeed struct {
	ProductID string `yaml:"product_id"`
	Quantity  int    `yaml:"quantity"`
}

func InitConfig() Config {
	configPath := getConfigPath()

	if configPath == "" {
		panic("config path is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return cfg
}

func getConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	return path
}
