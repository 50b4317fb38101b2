package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAppliesDefaultsWithNoYAMLOrEnv(t *testing.T) {
	require.NoError(t, Init())
	assert.Equal(t, "8080", AppConfig.Server.Port)
	assert.Equal(t, 3, AppConfig.Routing.MaxHopsDefault)
	assert.Equal(t, 4, AppConfig.Routing.MaxHopsLimit)
	assert.Equal(t, 15, AppConfig.Cache.TTLSeconds)
	assert.Equal(t, uint64(80_000), AppConfig.Gas.BaseGasPerHop)
}

func TestInitEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("MAX_HOPS_DEFAULT", "2")
	t.Setenv("CACHE_TTL_SECONDS", "30")

	require.NoError(t, Init())
	assert.Equal(t, "9999", AppConfig.Server.Port)
	assert.Equal(t, 2, AppConfig.Routing.MaxHopsDefault)
	assert.Equal(t, 30, AppConfig.Cache.TTLSeconds)
}

func TestInitEnvOverridesBooleanAndFloat(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("MIN_SPLIT_FRACTION", "0.05")

	require.NoError(t, Init())
	assert.True(t, AppConfig.Redis.Enabled)
	assert.InDelta(t, 0.05, AppConfig.Routing.MinSplitFraction, 1e-9)
}
