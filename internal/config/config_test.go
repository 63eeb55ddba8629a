package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-labs/koinonia/internal/pricing"
)

func setBillingEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_PRICE_FLAT_FEE", "price_flat")
	t.Setenv("STRIPE_PRICE_GROWTH", "price_growth")
	t.Setenv("STRIPE_PRICE_THRIVE", "price_thrive")
	t.Setenv("STRIPE_PRICE_ENTERPRISE", "price_enterprise")
}

func TestLoad_Defaults(t *testing.T) {
	setBillingEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingStripeKey(t *testing.T) {
	setBillingEnv(t)
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestLoad_MissingPriceIDFailsFast(t *testing.T) {
	// Each missing identifier must abort startup, not surface at first use.
	priceVars := []string{
		"STRIPE_PRICE_FLAT_FEE",
		"STRIPE_PRICE_GROWTH",
		"STRIPE_PRICE_THRIVE",
		"STRIPE_PRICE_ENTERPRISE",
	}
	for _, v := range priceVars {
		t.Run(v, func(t *testing.T) {
			setBillingEnv(t)
			t.Setenv(v, "")

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, pricing.ErrPriceNotConfigured)
		})
	}
}

func TestPrices(t *testing.T) {
	setBillingEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Prices()
	assert.Equal(t, "price_flat", p.FlatFee)
	assert.Equal(t, "price_growth", p.Tiers["growth"])
	assert.Equal(t, "price_thrive", p.Tiers["thrive"])
	assert.Equal(t, "price_enterprise", p.Tiers["enterprise"])
	require.NoError(t, p.Validate(pricing.Default()))
}

func TestAllowedOrigins(t *testing.T) {
	setBillingEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://app.koinonia.church, https://staging.koinonia.church")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://app.koinonia.church",
		"https://staging.koinonia.church",
	}, cfg.AllowedOrigins)
}
