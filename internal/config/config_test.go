package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DenominatorVideoOnly, cfg.ProgressDenominator)
	require.Equal(t, 10*time.Minute, cfg.PurgeRetention)
	require.Equal(t, "@every 1m", cfg.PurgeSchedule)
	require.Equal(t, "INR", cfg.PaymentCurrency)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "*", cfg.CORSAllowOrigins)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDenominator(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "secret")
	t.Setenv("LMS_PROGRESS_DENOMINATOR", "half")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAcceptsAllContentDenominator(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "secret")
	t.Setenv("LMS_PROGRESS_DENOMINATOR", "ALL_CONTENT")
	t.Setenv("LMS_PURGE_RETENTION", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DenominatorAllContent, cfg.ProgressDenominator)
	require.Equal(t, time.Hour, cfg.PurgeRetention)
}
