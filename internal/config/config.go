package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Engine     EngineConfig
	Demurrage  DemurrageConfig
	Billing    BillingConfig
	Settlement SettlementConfig
	Events     EventsConfig
	MQTT       MQTTConfig
	Ingestion  IngestionConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	SlowQueryThreshold time.Duration
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// EngineConfig controls the transactional retry loop around each mutation
type EngineConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	LockTimeout    time.Duration
}

type DemurrageConfig struct {
	DefaultFreeDays         int
	DefaultDailyRate        float64
	ReevaluateInterval      time.Duration
	BatchSize               int
	Workers                 int
	Holidays                []string // YYYY-MM-DD
	Timezone                string
	PerDiemDefaultFreeDays  int
	PerDiemDefaultDailyRate float64
}

type BillingConfig struct {
	FuelSurchargePct    float64
	HazmatFee           float64
	OverweightFee       float64
	ReeferFee           float64
	DefaultLineHaulRate float64
	InvoiceDueDays      int
	Currency            string
}

type SettlementConfig struct {
	DefaultPayMethod          string
	DefaultPayRate            float64
	DefaultFreeWaitingMinutes int
	DefaultWaitingRate        float64
}

type EventsConfig struct {
	Broker        string // log, mqtt, kafka, redis, rabbitmq
	Topic         string
	RelayInterval time.Duration
	RelayBatch    int
	KafkaBroker   string
	RedisURL      string
	RabbitMQURL   string
}

type MQTTConfig struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	QoS        int
	OrderTopic string
	TripTopic  string
	GateTopic  string
}

type IngestionConfig struct {
	Workers    int
	BufferSize int
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("DB_SLOW_QUERY_THRESHOLD", "200ms")
	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 50)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 100)
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "X-Request-ID"})

	viper.SetDefault("ENGINE_MAX_RETRIES", 3)
	viper.SetDefault("ENGINE_RETRY_BASE_DELAY_MS", 25)
	viper.SetDefault("ENGINE_LOCK_TIMEOUT_MS", 2000)

	viper.SetDefault("DEMURRAGE_DEFAULT_FREE_DAYS", 5)
	viper.SetDefault("DEMURRAGE_DEFAULT_DAILY_RATE", 150)
	viper.SetDefault("DEMURRAGE_REEVALUATE_INTERVAL", "15m")
	viper.SetDefault("DEMURRAGE_BATCH_SIZE", 200)
	viper.SetDefault("DEMURRAGE_WORKERS", 4)
	viper.SetDefault("DEMURRAGE_TIMEZONE", "UTC")
	viper.SetDefault("PER_DIEM_DEFAULT_FREE_DAYS", 4)
	viper.SetDefault("PER_DIEM_DEFAULT_DAILY_RATE", 35)

	viper.SetDefault("BILLING_FUEL_SURCHARGE_PCT", 8)
	viper.SetDefault("BILLING_HAZMAT_FEE", 150)
	viper.SetDefault("BILLING_OVERWEIGHT_FEE", 100)
	viper.SetDefault("BILLING_REEFER_FEE", 75)
	viper.SetDefault("BILLING_DEFAULT_LINE_HAUL_RATE", 0)
	viper.SetDefault("BILLING_INVOICE_DUE_DAYS", 30)
	viper.SetDefault("BILLING_CURRENCY", "USD")

	viper.SetDefault("SETTLEMENT_DEFAULT_FREE_WAITING_MINUTES", 120)

	viper.SetDefault("EVENTS_BROKER", "log")
	viper.SetDefault("EVENTS_TOPIC", "tms.automation.events")
	viper.SetDefault("EVENTS_RELAY_INTERVAL", "2s")
	viper.SetDefault("EVENTS_RELAY_BATCH", 100)

	viper.SetDefault("MQTT_CLIENT_ID", "drayage-automation")
	viper.SetDefault("MQTT_QOS", 1)
	viper.SetDefault("MQTT_ORDER_TOPIC", "tms/mutations/order")
	viper.SetDefault("MQTT_TRIP_TOPIC", "tms/mutations/trip")
	viper.SetDefault("MQTT_GATE_TOPIC", "tms/mutations/gate")
	viper.SetDefault("INGESTION_WORKERS", 4)
	viper.SetDefault("INGESTION_BUFFER", 1000)
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),

			MaxOpenConns:       viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:       viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime:    viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			SlowQueryThreshold: viper.GetDuration("DB_SLOW_QUERY_THRESHOLD"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
		Engine: EngineConfig{
			MaxRetries:     viper.GetInt("ENGINE_MAX_RETRIES"),
			RetryBaseDelay: time.Duration(viper.GetInt("ENGINE_RETRY_BASE_DELAY_MS")) * time.Millisecond,
			LockTimeout:    time.Duration(viper.GetInt("ENGINE_LOCK_TIMEOUT_MS")) * time.Millisecond,
		},
		Demurrage: DemurrageConfig{
			DefaultFreeDays:         viper.GetInt("DEMURRAGE_DEFAULT_FREE_DAYS"),
			DefaultDailyRate:        viper.GetFloat64("DEMURRAGE_DEFAULT_DAILY_RATE"),
			ReevaluateInterval:      viper.GetDuration("DEMURRAGE_REEVALUATE_INTERVAL"),
			BatchSize:               viper.GetInt("DEMURRAGE_BATCH_SIZE"),
			Workers:                 viper.GetInt("DEMURRAGE_WORKERS"),
			Holidays:                viper.GetStringSlice("DEMURRAGE_HOLIDAYS"),
			Timezone:                viper.GetString("DEMURRAGE_TIMEZONE"),
			PerDiemDefaultFreeDays:  viper.GetInt("PER_DIEM_DEFAULT_FREE_DAYS"),
			PerDiemDefaultDailyRate: viper.GetFloat64("PER_DIEM_DEFAULT_DAILY_RATE"),
		},
		Billing: BillingConfig{
			FuelSurchargePct:    viper.GetFloat64("BILLING_FUEL_SURCHARGE_PCT"),
			HazmatFee:           viper.GetFloat64("BILLING_HAZMAT_FEE"),
			OverweightFee:       viper.GetFloat64("BILLING_OVERWEIGHT_FEE"),
			ReeferFee:           viper.GetFloat64("BILLING_REEFER_FEE"),
			DefaultLineHaulRate: viper.GetFloat64("BILLING_DEFAULT_LINE_HAUL_RATE"),
			InvoiceDueDays:      viper.GetInt("BILLING_INVOICE_DUE_DAYS"),
			Currency:            viper.GetString("BILLING_CURRENCY"),
		},
		Settlement: SettlementConfig{
			DefaultPayMethod:          viper.GetString("SETTLEMENT_DEFAULT_PAY_METHOD"),
			DefaultPayRate:            viper.GetFloat64("SETTLEMENT_DEFAULT_PAY_RATE"),
			DefaultFreeWaitingMinutes: viper.GetInt("SETTLEMENT_DEFAULT_FREE_WAITING_MINUTES"),
			DefaultWaitingRate:        viper.GetFloat64("SETTLEMENT_DEFAULT_WAITING_RATE"),
		},
		Events: EventsConfig{
			Broker:        viper.GetString("EVENTS_BROKER"),
			Topic:         viper.GetString("EVENTS_TOPIC"),
			RelayInterval: viper.GetDuration("EVENTS_RELAY_INTERVAL"),
			RelayBatch:    viper.GetInt("EVENTS_RELAY_BATCH"),
			KafkaBroker:   viper.GetString("KAFKA_BROKER"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RabbitMQURL:   viper.GetString("RABBITMQ_URL"),
		},
		MQTT: MQTTConfig{
			Broker:     viper.GetString("MQTT_BROKER"),
			ClientID:   viper.GetString("MQTT_CLIENT_ID"),
			Username:   viper.GetString("MQTT_USERNAME"),
			Password:   viper.GetString("MQTT_PASSWORD"),
			QoS:        viper.GetInt("MQTT_QOS"),
			OrderTopic: viper.GetString("MQTT_ORDER_TOPIC"),
			TripTopic:  viper.GetString("MQTT_TRIP_TOPIC"),
			GateTopic:  viper.GetString("MQTT_GATE_TOPIC"),
		},
		Ingestion: IngestionConfig{
			Workers:    viper.GetInt("INGESTION_WORKERS"),
			BufferSize: viper.GetInt("INGESTION_BUFFER"),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Location resolves the configured demurrage timezone, falling back to UTC.
func (c *DemurrageConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
