// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	QueueBackendServiceBus = "servicebus"
	QueueBackendEtcd       = "etcd"

	ProvisionerBackendACI = "aci"
	ProvisionerBackendLog = "log"

	NameStrategyRandom = "random"
	NameStrategyUUID   = "uuid"

	DefaultImage = "pskreter/worker-container:latest"
)

// Config holds all configuration for the dispatcher.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	QueueBackend string        `mapstructure:"queue_backend" validate:"oneof=servicebus etcd"`
	QueueName    string        `mapstructure:"queue_name" validate:"required"`
	ReceiveWait  time.Duration `mapstructure:"receive_wait" validate:"gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff" validate:"gte=0"`

	ServiceBusConnectionString string `mapstructure:"servicebus_connection_string"`
	ServiceBusNamespace        string `mapstructure:"servicebus_namespace"`
	ServiceBusSASKeyName       string `mapstructure:"servicebus_sas_key_name"`
	ServiceBusSASKeyValue      string `mapstructure:"servicebus_sas_key_value"`

	EtcdEndpoints   []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout     time.Duration `mapstructure:"etcd_timeout" validate:"gt=0"`
	EtcdQueuePrefix string        `mapstructure:"etcd_queue_prefix"`

	ProvisionerBackend      string `mapstructure:"provisioner_backend" validate:"oneof=aci log"`
	SubscriptionID          string `mapstructure:"subscription_id"`
	ManagedIdentityClientID string `mapstructure:"managed_identity_client_id"`
	ResourceGroup           string `mapstructure:"resource_group" validate:"required"`
	Location                string `mapstructure:"location" validate:"required"`
	Image                   string `mapstructure:"image" validate:"required"`
	NameStrategy            string `mapstructure:"name_strategy" validate:"oneof=random uuid"`

	MetricsListenAddr string `mapstructure:"metrics_listen_addr"`
	HeartbeatSchedule string `mapstructure:"heartbeat_schedule"`
	TracingEnabled    bool   `mapstructure:"tracing_enabled"`
	LogLevel          string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// Load loads configuration from file and environment variables. An empty
// configFile searches ./configs and the working directory for config.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("queue_backend", QueueBackendServiceBus)
	v.SetDefault("queue_name", "")
	v.SetDefault("receive_wait", "30s")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("error_backoff", "5s")
	v.SetDefault("servicebus_connection_string", "")
	v.SetDefault("servicebus_namespace", "")
	v.SetDefault("servicebus_sas_key_name", "")
	v.SetDefault("servicebus_sas_key_value", "")
	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("etcd_queue_prefix", "/dispatcher/queues/")
	v.SetDefault("provisioner_backend", ProvisionerBackendACI)
	v.SetDefault("subscription_id", "")
	v.SetDefault("managed_identity_client_id", "")
	v.SetDefault("resource_group", "")
	v.SetDefault("location", "")
	v.SetDefault("image", DefaultImage)
	v.SetDefault("name_strategy", NameStrategyRandom)
	v.SetDefault("metrics_listen_addr", ":9090")
	v.SetDefault("heartbeat_schedule", "@every 1m")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("log_level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")    // name of config file (without extension)
		v.SetConfigType("yaml")      // or "json", "toml"
		v.AddConfigPath("./configs") // path to look for the config file in
		v.AddConfigPath(".")         // optionally look for config in the working directory
	}

	// Read environment variables
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; defaults and env vars only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Comma-separated lists arrive from env vars as a single element.
	if len(cfg.EtcdEndpoints) == 1 && strings.Contains(cfg.EtcdEndpoints[0], ",") {
		cfg.EtcdEndpoints = strings.Split(cfg.EtcdEndpoints[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the backend-specific requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.QueueBackend {
	case QueueBackendServiceBus:
		if c.ServiceBusConnectionString == "" && c.ServiceBusNamespace == "" {
			return errors.New("invalid config: servicebus backend needs servicebus_connection_string or servicebus_namespace")
		}
		if (c.ServiceBusSASKeyName == "") != (c.ServiceBusSASKeyValue == "") {
			return errors.New("invalid config: servicebus_sas_key_name and servicebus_sas_key_value must be set together")
		}
	case QueueBackendEtcd:
		if len(c.EtcdEndpoints) == 0 {
			return errors.New("invalid config: etcd backend needs etcd_endpoints")
		}
	}

	if c.ProvisionerBackend == ProvisionerBackendACI && c.SubscriptionID == "" {
		return errors.New("invalid config: aci provisioner needs subscription_id")
	}
	return nil
}
