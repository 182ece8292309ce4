package config_test

import (
	"testing"

	"github.com/lavkamarket/delivery/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.CDEKEnabled)
	assert.True(t, cfg.RuspostEnabled)
	assert.Equal(t, 27030, cfg.RuspostObjectCode)
	assert.Equal(t, "https://api.cdek.ru/v2", cfg.CDEKBaseURL)
	assert.NotEmpty(t, cfg.RuspostTariffURL)
	assert.NotEmpty(t, cfg.GeocoderBaseURL)
	assert.Empty(t, cfg.RedisURL, "redis is opt-in")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CDEK_ORIGIN_CITY_CODE", "270")
	t.Setenv("RUSPOST_ACCEPTANCE_INDEX", "109012")
	t.Setenv("RUSPOST_OBJECT_CODE", "23030")
	t.Setenv("CDEK_USE_MOCK", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 270, cfg.CDEKOriginCityCode)
	assert.Equal(t, "109012", cfg.RuspostAcceptanceIndex)
	assert.Equal(t, 23030, cfg.RuspostObjectCode)
	assert.True(t, cfg.CDEKUseMock)
}

func TestAttributes(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	attrs := cfg.Attributes()
	assert.NotEmpty(t, attrs)
}
