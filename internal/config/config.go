package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "PATROL"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "patrol.db"
	defaultLogLevel           = "info"
	defaultRemoteTimeout      = 30
	defaultSubmitRPS          = 2.0
	defaultPollInterval       = 120
	defaultPendingGrace       = 150
	defaultSessionTTLMinutes  = 720
	defaultTimezone           = "Asia/Jakarta"
	defaultSummaryStartHour   = 7
	defaultSummaryEndHour     = 18
	defaultOfflineModeEnabled = false
)

// AppConfig captures runtime configuration for the patrol sync service.
type AppConfig struct {
	HTTPAddress          string
	RemoteEndpoint       string
	RemoteTimeout        time.Duration
	SubmitRPS            float64
	PollInterval         time.Duration
	PendingGrace         time.Duration
	DatabasePath         string
	SessionSigningSecret string
	SessionTTL           time.Duration
	Location             *time.Location
	SummaryStartHour     int
	SummaryEndHour       int
	Offline              bool
	LogLevel             string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("remote.timeout_seconds", defaultRemoteTimeout)
	configViper.SetDefault("remote.submit_rps", defaultSubmitRPS)
	configViper.SetDefault("poll.interval_seconds", defaultPollInterval)
	configViper.SetDefault("pending.grace_seconds", defaultPendingGrace)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)
	configViper.SetDefault("notify.timezone", defaultTimezone)
	configViper.SetDefault("notify.summary_start_hour", defaultSummaryStartHour)
	configViper.SetDefault("notify.summary_end_hour", defaultSummaryEndHour)
	configViper.SetDefault("offline.enabled", defaultOfflineModeEnabled)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	timezone := strings.TrimSpace(configViper.GetString("notify.timezone"))
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("notify.timezone %q: %w", timezone, err)
	}

	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		RemoteEndpoint:       strings.TrimSpace(configViper.GetString("remote.endpoint")),
		RemoteTimeout:        time.Duration(configViper.GetInt("remote.timeout_seconds")) * time.Second,
		SubmitRPS:            configViper.GetFloat64("remote.submit_rps"),
		PollInterval:         time.Duration(configViper.GetInt("poll.interval_seconds")) * time.Second,
		PendingGrace:         time.Duration(configViper.GetInt("pending.grace_seconds")) * time.Second,
		DatabasePath:         configViper.GetString("database.path"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionTTL:           time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		Location:             location,
		SummaryStartHour:     configViper.GetInt("notify.summary_start_hour"),
		SummaryEndHour:       configViper.GetInt("notify.summary_end_hour"),
		Offline:              configViper.GetBool("offline.enabled"),
		LogLevel:             configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.RemoteEndpoint == "" && !c.Offline {
		return fmt.Errorf("remote.endpoint is required unless offline.enabled is set")
	}
	if c.RemoteEndpoint != "" {
		parsed, err := url.Parse(c.RemoteEndpoint)
		if err != nil || !parsed.IsAbs() {
			return fmt.Errorf("remote.endpoint must be an absolute URL")
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll.interval_seconds must be positive")
	}
	if c.PendingGrace < 0 {
		return fmt.Errorf("pending.grace_seconds must not be negative")
	}
	if c.SubmitRPS <= 0 {
		return fmt.Errorf("remote.submit_rps must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if c.SummaryStartHour < 0 || c.SummaryEndHour > 24 || c.SummaryStartHour > c.SummaryEndHour {
		return fmt.Errorf("notify summary window [%d, %d) is invalid", c.SummaryStartHour, c.SummaryEndHour)
	}
	return nil
}
