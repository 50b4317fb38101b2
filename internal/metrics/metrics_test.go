package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	m.CacheHits.Inc()
	m.QuoteErrors.WithLabelValues("timeout").Inc()
	m.GraphPoolCount.Set(42)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRejectsNilRegistry(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestDoubleRegistrationFailsOnSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err, "registering the same collector names twice must fail")
}
