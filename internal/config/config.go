// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/koinonia-labs/koinonia/internal/pricing"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// CORS
	AllowedOrigins []string

	// Observability
	OTLPEndpoint string

	// Rate limiting
	RateLimitRPM int

	// Stripe
	StripeSecretKey     string
	PriceFlatFee        string // price ID for the fixed monthly fee
	PriceGrowth         string // price ID per paid seat, growth tier
	PriceThrive         string // price ID per paid seat, thrive tier
	PriceEnterprise     string // price ID per paid seat, enterprise tier
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	BillingPortalReturn string
}

const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultRateLimit = 120
)

// Load reads configuration from environment variables. A .env file is
// loaded first when present (local development only).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AllowedOrigins:      splitList(getEnv("ALLOWED_ORIGINS", "*")),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:        getEnvInt("RATE_LIMIT_RPM", DefaultRateLimit),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		PriceFlatFee:        os.Getenv("STRIPE_PRICE_FLAT_FEE"),
		PriceGrowth:         os.Getenv("STRIPE_PRICE_GROWTH"),
		PriceThrive:         os.Getenv("STRIPE_PRICE_THRIVE"),
		PriceEnterprise:     os.Getenv("STRIPE_PRICE_ENTERPRISE"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/billing/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/billing"),
		BillingPortalReturn: getEnv("BILLING_PORTAL_RETURN_URL", "http://localhost:3000/billing"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present. Billing
// identifiers are validated here, at startup, so a missing price ID can
// never surface later as a silently omitted subscription charge.
func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if err := c.Prices().Validate(pricing.Default()); err != nil {
		return fmt.Errorf("billing price IDs incomplete (set STRIPE_PRICE_FLAT_FEE, "+
			"STRIPE_PRICE_GROWTH, STRIPE_PRICE_THRIVE, STRIPE_PRICE_ENTERPRISE): %w", err)
	}
	return nil
}

// Prices returns the Stripe price table assembled from the environment.
func (c *Config) Prices() pricing.PriceTable {
	return pricing.PriceTable{
		FlatFee: c.PriceFlatFee,
		Tiers: map[string]string{
			"growth":     c.PriceGrowth,
			"thrive":     c.PriceThrive,
			"enterprise": c.PriceEnterprise,
		},
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
