package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Notification drivers accepted by NOTIFY_DRIVER.
const (
	NotifyDriverLog     = "log"
	NotifyDriverKafka   = "kafka"
	NotifyDriverAMQP    = "amqp"
	NotifyDriverWebhook = "webhook"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Redis holds the document store connection settings.
	Redis RedisConfig `mapstructure:",squash"`

	// Auth holds the token verification settings.
	Auth AuthConfig `mapstructure:",squash"`

	// Notify selects and configures the status-change notification sink.
	Notify NotifyConfig `mapstructure:",squash"`

	// Orders holds order lifecycle tuning.
	Orders OrdersConfig `mapstructure:",squash"`
}

// RedisConfig holds the document store connection details.
type RedisConfig struct {
	// URL has the form redis://[:password@]host[:port][/database].
	URL string `mapstructure:"REDIS_URL" required:"true"`
	// MaxTxRetries bounds optimistic transaction retries before a conflict is reported.
	MaxTxRetries int `mapstructure:"REDIS_MAX_TX_RETRIES" default:"16"`
}

// AuthConfig holds the JWT verification secret.
type AuthConfig struct {
	// JWTSecret is the HMAC key used to verify bearer tokens.
	JWTSecret string `mapstructure:"JWT_SECRET" required:"true"`
}

// NotifyConfig holds the notification sink settings.
type NotifyConfig struct {
	// Driver is one of log, kafka, amqp or webhook.
	Driver string `mapstructure:"NOTIFY_DRIVER" default:"log"`
	// KafkaBrokers is a comma separated broker list.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic receives status change events.
	KafkaTopic string `mapstructure:"KAFKA_TOPIC" default:"order-status"`
	// AMQPURL is the RabbitMQ connection string.
	AMQPURL string `mapstructure:"AMQP_URL"`
	// AMQPExchange is the topic exchange status events are published to.
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE" default:"orders_exchange"`
	// WebhookURL receives status change events as JSON POSTs.
	WebhookURL string `mapstructure:"WEBHOOK_URL"`
	// WebhookTimeoutSeconds bounds each webhook delivery.
	WebhookTimeoutSeconds int `mapstructure:"WEBHOOK_TIMEOUT_SECONDS" default:"5"`
}

// OrdersConfig holds order lifecycle settings.
type OrdersConfig struct {
	// StreamBuffer is the number of undelivered snapshots kept per subscriber.
	StreamBuffer int `mapstructure:"STREAM_BUFFER" default:"1"`
	// SeedIDCounter raises the id counter to the highest stored order id at startup.
	SeedIDCounter bool `mapstructure:"ORDER_ID_SEED_SCAN" default:"true"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	if err := config.Notify.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate checks that the selected driver has its connection settings.
func (n NotifyConfig) validate() error {
	switch strings.ToLower(n.Driver) {
	case NotifyDriverLog:
		return nil
	case NotifyDriverKafka:
		if n.KafkaBrokers == "" {
			return fmt.Errorf("missing required configuration: KAFKA_BROKERS")
		}
	case NotifyDriverAMQP:
		if n.AMQPURL == "" {
			return fmt.Errorf("missing required configuration: AMQP_URL")
		}
	case NotifyDriverWebhook:
		if n.WebhookURL == "" {
			return fmt.Errorf("missing required configuration: WEBHOOK_URL")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_DRIVER: %q", n.Driver)
	}
	return nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("failed to bind %s: %w", key, err)
			}
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		if field.Tag.Get("required") == "true" && isZero(val.Field(i)) {
			return fmt.Errorf("missing required configuration: %s", field.Tag.Get("mapstructure"))
		}
	}
	return nil
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
