package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "stub", cfg.Payment.Provider)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, "session_id", cfg.Session.CookieName)
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "square")
	t.Setenv("SQUARE_ACCESS_TOKEN", "sq-token")
	t.Setenv("SQUARE_LOCATION_ID", "L123")
	t.Setenv("PAYMENT_CURRENCY", "cad")
	t.Setenv("PAYMENT_CHARGE_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "square", cfg.Payment.Provider)
	assert.Equal(t, "CAD", cfg.Payment.Currency)
	assert.Equal(t, 5*time.Second, cfg.Payment.ChargeTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Environment: "development"},
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{Host: "db", Name: "store", User: "store"},
			Redis:    RedisConfig{Host: "redis"},
			JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
			Session:  SessionConfig{TTL: time.Hour},
			Payment: PaymentConfig{
				Provider:        "stub",
				Currency:        "USD",
				ChargeTimeout:   10 * time.Second,
				CheckoutLockTTL: time.Minute,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "short secret", mutate: func(c *Config) { c.JWT.Secret = "short" }, wantErr: "JWT_SECRET"},
		{name: "stub in production", mutate: func(c *Config) { c.App.Environment = "production" }, wantErr: "stub"},
		{name: "square without token", mutate: func(c *Config) { c.Payment.Provider = "square" }, wantErr: "SQUARE_ACCESS_TOKEN"},
		{name: "unknown provider", mutate: func(c *Config) { c.Payment.Provider = "paypal" }, wantErr: "unknown PAYMENT_PROVIDER"},
		{name: "lock shorter than charge", mutate: func(c *Config) { c.Payment.CheckoutLockTTL = time.Second }, wantErr: "CHECKOUT_LOCK_TTL"},
		{name: "bad currency", mutate: func(c *Config) { c.Payment.Currency = "DOLLARS" }, wantErr: "PAYMENT_CURRENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
