package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Progress denominator policies.
const (
	DenominatorVideoOnly  = "video_only"
	DenominatorAllContent = "all_content"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                  string
	AppEnv                   string
	AppPort                  string
	DatabaseURL              string
	RedisURL                 string
	NATSURL                  string
	EventSubjectPrefix       string
	JWTSecret                string
	CloudinaryCloudName      string
	CloudinaryAPIKey         string
	CloudinaryAPISecret      string
	CloudinaryUploadFolder   string
	ProgressCacheTTL         time.Duration
	ProgressDenominator      string
	CertificateVerifyBaseURL string
	PurgeRetention           time.Duration
	PurgeSchedule            string
	RazorpayKeyID            string
	RazorpayKeySecret        string
	RazorpayBaseURL          string
	PaymentCurrency          string
	IssueRateLimit           int
	IssueRateWindow          time.Duration
	CORSAllowOrigins         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LMS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA LMS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.subject_prefix", "lms")
	v.SetDefault("cloudinary.folder", "gema/lms")
	v.SetDefault("progress.cache_ttl", "2m")
	v.SetDefault("progress.denominator", DenominatorVideoOnly)
	v.SetDefault("certificate.verify_base_url", "http://localhost:8080/api/v1/certificates/verify")
	v.SetDefault("purge.retention", "10m")
	v.SetDefault("purge.schedule", "@every 1m")
	v.SetDefault("razorpay.base_url", "https://api.razorpay.com")
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("certificate.issue_rate_limit", 10)
	v.SetDefault("certificate.issue_rate_window", "1m")
	v.SetDefault("cors.allow_origins", "*")

	cacheTTL, err := parseDuration(v, "progress.cache_ttl", "2m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress cache ttl: %w", err)
	}

	retention, err := parseDuration(v, "purge.retention", "10m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid purge retention: %w", err)
	}

	issueWindow, err := parseDuration(v, "certificate.issue_rate_window", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid issue rate window: %w", err)
	}

	cfg := Config{
		AppName:                  v.GetString("app.name"),
		AppEnv:                   v.GetString("app.env"),
		AppPort:                  v.GetString("app.port"),
		DatabaseURL:              v.GetString("database.url"),
		RedisURL:                 v.GetString("redis.url"),
		NATSURL:                  v.GetString("nats.url"),
		EventSubjectPrefix:       v.GetString("events.subject_prefix"),
		JWTSecret:                v.GetString("jwt.secret"),
		CloudinaryCloudName:      v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:         v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:      v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:   v.GetString("cloudinary.folder"),
		ProgressCacheTTL:         cacheTTL,
		ProgressDenominator:      strings.ToLower(strings.TrimSpace(v.GetString("progress.denominator"))),
		CertificateVerifyBaseURL: strings.TrimRight(v.GetString("certificate.verify_base_url"), "/"),
		PurgeRetention:           retention,
		PurgeSchedule:            v.GetString("purge.schedule"),
		RazorpayKeyID:            v.GetString("razorpay.key_id"),
		RazorpayKeySecret:        v.GetString("razorpay.key_secret"),
		RazorpayBaseURL:          v.GetString("razorpay.base_url"),
		PaymentCurrency:          strings.ToUpper(v.GetString("payment.currency")),
		IssueRateLimit:           v.GetInt("certificate.issue_rate_limit"),
		IssueRateWindow:          issueWindow,
		CORSAllowOrigins:         v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if err := ValidateDenominator(cfg.ProgressDenominator); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ValidateDenominator rejects unknown progress denominator policies.
func ValidateDenominator(policy string) error {
	switch policy {
	case DenominatorVideoOnly, DenominatorAllContent:
		return nil
	default:
		return fmt.Errorf("unknown progress denominator %q", policy)
	}
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
