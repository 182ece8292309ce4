package main

import (
	"context"

	"github.com/lavkamarket/delivery/internal/config"
	"github.com/lavkamarket/delivery/internal/telemetry"
	"github.com/lavkamarket/delivery/internal/tokencache"
	"github.com/lavkamarket/delivery/pkg/carrier"
	"github.com/lavkamarket/delivery/pkg/carrier/cdek"
	"github.com/lavkamarket/delivery/pkg/carrier/ruspost"
	"github.com/lavkamarket/delivery/pkg/geocoder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName),
			func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

func initProviderRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (*carrier.Registry, error) {
	registry := carrier.NewRegistry()

	if cfg.CDEKEnabled {
		tokens, err := initTokenStore(cfg)
		if err != nil {
			return nil, err
		}
		registry.Register(cdek.New(cdek.Config{
			ClientID:       cfg.CDEKClientID,
			ClientSecret:   cfg.CDEKClientSecret,
			OriginCityCode: cfg.CDEKOriginCityCode,
			BaseURL:        cfg.CDEKBaseURL,
			UseMock:        cfg.CDEKUseMock,
		}, tokens, logger, tracer))
	}

	if cfg.RuspostEnabled {
		geo := geocoder.New(geocoder.Config{
			BaseURL:   cfg.GeocoderBaseURL,
			UserAgent: cfg.GeocoderUserAgent,
		})
		rp, err := ruspost.New(ruspost.Config{
			APIKey:          cfg.RuspostAPIKey,
			AcceptanceIndex: cfg.RuspostAcceptanceIndex,
			OfficeIndex:     cfg.RuspostOfficeIndex,
			ObjectCode:      cfg.RuspostObjectCode,
			TariffURL:       cfg.RuspostTariffURL,
			OfficesURL:      cfg.RuspostOfficesURL,
			UseMock:         cfg.RuspostUseMock,
		}, geo, logger, tracer)
		if err != nil {
			return nil, err
		}
		registry.Register(rp)
	}

	return registry, nil
}

// initTokenStore picks the carrier token store: Redis when configured so
// that replicas share tokens, in-process memory otherwise.
func initTokenStore(cfg *config.Config) (tokencache.Store, error) {
	if cfg.RedisURL == "" {
		return tokencache.NewMemory(), nil
	}
	return tokencache.NewRedis(cfg.RedisURL, "delivery:cdek:token")
}
