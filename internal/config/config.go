package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configFile = "config.toml"
	envPrefix  = "TB"
	dirName    = ".tb"
)

const (
	KeyClientID        = "twitch.client_id"
	KeyHelixURL        = "twitch.helix_url"
	KeyOAuthURL        = "twitch.oauth_url"
	KeyEventSubURL     = "eventsub.url"
	KeyKeepaliveGrace  = "eventsub.keepalive_grace"
	KeyWelcomeTimeout  = "eventsub.welcome_timeout"
	KeyRedialDelay     = "eventsub.redial_delay"
	KeyTimeoutDelay    = "executor.timeout_delay"
	KeyRequestTimeout  = "api.request_timeout"
	KeyRatePerSecond   = "api.rate_per_second"
	KeyBurst           = "api.burst"
	KeyOAuthListenAddr = "oauth.listen_addr"
	KeyOAuthTimeout    = "oauth.timeout"
	KeyPollInterval    = "presence.poll_interval"
	KeyMetricsAddr     = "metrics.listen_addr"
	KeyLogLevel        = "log.level"
	KeyChannelsPath    = "channels.path"
	KeyWatchtimePath   = "watchtime.path"
	KeySecretsRoot     = "secrets.root"
)

type Config struct {
	Dir       string
	Twitch    TwitchConfig
	EventSub  EventSubConfig
	Executor  ExecutorConfig
	API       APIConfig
	OAuth     OAuthConfig
	Presence  PresenceConfig
	Metrics   MetricsConfig
	LogLevel  string
	Channels  string
	Watchtime string
	Secrets   string
}

type TwitchConfig struct {
	ClientID string
	HelixURL string
	OAuthURL string
}

type EventSubConfig struct {
	URL            string
	KeepaliveGrace time.Duration
	WelcomeTimeout time.Duration
	RedialDelay    time.Duration
}

type ExecutorConfig struct {
	TimeoutDelay time.Duration
}

type APIConfig struct {
	RequestTimeout time.Duration
	RatePerSecond  float64
	Burst          int
}

type OAuthConfig struct {
	ListenAddr string
	Timeout    time.Duration
}

type PresenceConfig struct {
	PollInterval time.Duration
}

type MetricsConfig struct {
	ListenAddr string
}

// DefaultDir returns ~/.tb.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(homeDir, dirName), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault(KeyHelixURL, "https://api.twitch.tv/helix")
	v.SetDefault(KeyOAuthURL, "https://id.twitch.tv/oauth2")
	v.SetDefault(KeyEventSubURL, "wss://eventsub.wss.twitch.tv/ws")
	v.SetDefault(KeyKeepaliveGrace, 2*time.Second)
	v.SetDefault(KeyWelcomeTimeout, 10*time.Second)
	v.SetDefault(KeyRedialDelay, time.Second)
	v.SetDefault(KeyTimeoutDelay, time.Second)
	v.SetDefault(KeyRequestTimeout, 10*time.Second)
	v.SetDefault(KeyRatePerSecond, 13.0)
	v.SetDefault(KeyBurst, 20)
	v.SetDefault(KeyOAuthListenAddr, "127.0.0.1:44026")
	v.SetDefault(KeyOAuthTimeout, 5*time.Minute)
	v.SetDefault(KeyPollInterval, time.Minute)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyChannelsPath, filepath.Join(dir, "channels.toml"))
	v.SetDefault(KeyWatchtimePath, filepath.Join(dir, "watchtime.toml"))
	v.SetDefault(KeySecretsRoot, filepath.Join(dir, "secrets"))
}

// Load reads <dir>/config.toml (missing file is fine) with TB_* environment
// overrides. An empty dir resolves to DefaultDir.
func Load(v *viper.Viper, dir string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	if dir == "" {
		resolved, err := DefaultDir()
		if err != nil {
			return Config{}, err
		}
		dir = resolved
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, dir)

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Dir: dir,
		Twitch: TwitchConfig{
			ClientID: strings.TrimSpace(v.GetString(KeyClientID)),
			HelixURL: strings.TrimRight(v.GetString(KeyHelixURL), "/"),
			OAuthURL: strings.TrimRight(v.GetString(KeyOAuthURL), "/"),
		},
		EventSub: EventSubConfig{
			URL:            v.GetString(KeyEventSubURL),
			KeepaliveGrace: v.GetDuration(KeyKeepaliveGrace),
			WelcomeTimeout: v.GetDuration(KeyWelcomeTimeout),
			RedialDelay:    v.GetDuration(KeyRedialDelay),
		},
		Executor: ExecutorConfig{
			TimeoutDelay: v.GetDuration(KeyTimeoutDelay),
		},
		API: APIConfig{
			RequestTimeout: v.GetDuration(KeyRequestTimeout),
			RatePerSecond:  v.GetFloat64(KeyRatePerSecond),
			Burst:          v.GetInt(KeyBurst),
		},
		OAuth: OAuthConfig{
			ListenAddr: v.GetString(KeyOAuthListenAddr),
			Timeout:    v.GetDuration(KeyOAuthTimeout),
		},
		Presence: PresenceConfig{
			PollInterval: v.GetDuration(KeyPollInterval),
		},
		Metrics: MetricsConfig{
			ListenAddr: v.GetString(KeyMetricsAddr),
		},
		LogLevel: v.GetString(KeyLogLevel),
	}

	var err error
	if cfg.Channels, err = normalizePath(v.GetString(KeyChannelsPath), KeyChannelsPath); err != nil {
		return Config{}, err
	}
	if cfg.Watchtime, err = normalizePath(v.GetString(KeyWatchtimePath), KeyWatchtimePath); err != nil {
		return Config{}, err
	}
	if cfg.Secrets, err = normalizePath(v.GetString(KeySecretsRoot), KeySecretsRoot); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.EventSub.URL == "" {
		return fmt.Errorf("%s is required", KeyEventSubURL)
	}
	if c.EventSub.RedialDelay < 0 || c.Executor.TimeoutDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if c.API.RatePerSecond <= 0 {
		return fmt.Errorf("%s must be positive", KeyRatePerSecond)
	}
	if c.Presence.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}

	return nil
}

// RequireClientID reports the missing application registration that
// `tb init` fixes.
func (c Config) RequireClientID() error {
	if c.Twitch.ClientID == "" {
		return fmt.Errorf("%s is not set, run `tb init` first", KeyClientID)
	}
	return nil
}

func normalizePath(path string, key string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}

	return filepath.Clean(absPath), nil
}
