package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CDEK
	CDEKClientID       string `envconfig:"CDEK_CLIENT_ID"`
	CDEKClientSecret   string `envconfig:"CDEK_CLIENT_SECRET"`
	CDEKOriginCityCode int    `envconfig:"CDEK_ORIGIN_CITY_CODE"`
	CDEKBaseURL        string `envconfig:"CDEK_BASE_URL" default:"https://api.cdek.ru/v2"`
	CDEKEnabled        bool   `envconfig:"CDEK_ENABLED" default:"true"`
	CDEKUseMock        bool   `envconfig:"CDEK_USE_MOCK" default:"false"`

	// Russian Post
	RuspostAPIKey          string `envconfig:"RUSPOST_API_KEY"`
	RuspostAcceptanceIndex string `envconfig:"RUSPOST_ACCEPTANCE_INDEX"`
	RuspostOfficeIndex     string `envconfig:"RUSPOST_OFFICE_INDEX"`
	RuspostObjectCode      int    `envconfig:"RUSPOST_OBJECT_CODE" default:"27030"`
	RuspostTariffURL       string `envconfig:"RUSPOST_TARIFF_URL" default:"https://tariff.pochta.ru/v2/calculate/tariff"`
	RuspostOfficesURL      string `envconfig:"RUSPOST_OFFICES_URL" default:"https://widget.pochta.ru/api/pvz/offices"`
	RuspostEnabled         bool   `envconfig:"RUSPOST_ENABLED" default:"true"`
	RuspostUseMock         bool   `envconfig:"RUSPOST_USE_MOCK" default:"false"`

	// Geocoder
	GeocoderBaseURL   string `envconfig:"GEOCODER_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent string `envconfig:"GEOCODER_USER_AGENT" default:"lavkamarket-delivery/1.0"`

	// Token cache; empty RedisURL keeps tokens in process memory
	RedisURL string `envconfig:"REDIS_URL"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.observability.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"lavkamarket-delivery"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("cdek.enabled", c.CDEKEnabled),
		attribute.Bool("ruspost.enabled", c.RuspostEnabled),
	}
}
