package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/shiplabel/internal/retry"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type RetryConfig struct {
	MaxRetries     int           `mapstructure:"maxRetries"`
	InitialDelay   time.Duration `mapstructure:"initialDelay"`
	MaxDelay       time.Duration `mapstructure:"maxDelay"`
	AttemptTimeout time.Duration `mapstructure:"attemptTimeout"`
}

// IssuanceGuardConfig sizes the in-flight key. TTL must outlast a full
// retried issuance so the key cannot lapse while the carrier is still called.
type IssuanceGuardConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// PollInterval is how often a caller waiting on another holder re-checks
	// for the stored label.
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

type ShippingConfig struct {
	Retry         RetryConfig         `mapstructure:"retry"`
	IssuanceGuard IssuanceGuardConfig `mapstructure:"issuanceGuard"`
}

func DefaultShippingConfig() ShippingConfig {
	return ShippingConfig{
		Retry: RetryConfig{
			MaxRetries:     retry.DefaultMaxRetries,
			InitialDelay:   retry.DefaultInitialDelay,
			MaxDelay:       retry.DefaultMaxDelay,
			AttemptTimeout: 30 * time.Second,
		},
		IssuanceGuard: IssuanceGuardConfig{
			TTL:          2 * time.Minute,
			PollInterval: 100 * time.Millisecond,
		},
	}
}

func (c ShippingConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:     c.Retry.MaxRetries,
		InitialDelay:   c.Retry.InitialDelay,
		MaxDelay:       c.Retry.MaxDelay,
		AttemptTimeout: c.Retry.AttemptTimeout,
	}
}

type ShippingConfigHolder struct {
	current atomic.Value // holds ShippingConfig
}

// NewStaticShippingConfigHolder returns a holder that never reloads.
func NewStaticShippingConfigHolder(cfg ShippingConfig) *ShippingConfigHolder {
	holder := &ShippingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewShippingConfigHolder reads shipping.yml and reloads it on change. A
// missing file falls back to defaults.
func NewShippingConfigHolder(appCfg Config, log *zap.Logger) (*ShippingConfigHolder, error) {
	v := viper.New()

	if appCfg.ShippingConfigPath != "" {
		v.SetConfigFile(appCfg.ShippingConfigPath)
	} else {
		v.SetConfigName("shipping")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/shiplabel")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SHIPLABEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return newShippingConfigHolder(v, log, true)
}

func newShippingConfigHolder(v *viper.Viper, log *zap.Logger, watch bool) (*ShippingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("shipping.config")

	defaults := DefaultShippingConfig()
	v.SetDefault("shipping.retry.maxRetries", defaults.Retry.MaxRetries)
	v.SetDefault("shipping.retry.initialDelay", defaults.Retry.InitialDelay)
	v.SetDefault("shipping.retry.maxDelay", defaults.Retry.MaxDelay)
	v.SetDefault("shipping.retry.attemptTimeout", defaults.Retry.AttemptTimeout)
	v.SetDefault("shipping.issuanceGuard.ttl", defaults.IssuanceGuard.TTL)
	v.SetDefault("shipping.issuanceGuard.pollInterval", defaults.IssuanceGuard.PollInterval)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
		log.Info("shipping config file not found, using defaults")
	}

	var cfg ShippingConfig
	if err := v.UnmarshalKey("shipping", &cfg); err != nil {
		return nil, err
	}
	if err := validateShippingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticShippingConfigHolder(cfg)

	if watch && fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ShippingConfig
			if err := v.UnmarshalKey("shipping", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateShippingConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *ShippingConfigHolder) Get() ShippingConfig {
	return h.current.Load().(ShippingConfig)
}

func validateShippingConfig(cfg ShippingConfig) error {
	if cfg.Retry.MaxRetries < 1 {
		return errors.New("shipping.retry.maxRetries must be at least 1")
	}
	if cfg.Retry.InitialDelay < 0 || cfg.Retry.MaxDelay < 0 || cfg.Retry.AttemptTimeout < 0 {
		return errors.New("shipping.retry delays cannot be negative")
	}
	if cfg.Retry.MaxDelay > 0 && cfg.Retry.InitialDelay > cfg.Retry.MaxDelay {
		return fmt.Errorf("shipping.retry.initialDelay %s exceeds maxDelay %s", cfg.Retry.InitialDelay, cfg.Retry.MaxDelay)
	}
	if cfg.Retry.AttemptTimeout <= 0 {
		return errors.New("shipping.retry.attemptTimeout must be positive")
	}
	if cfg.IssuanceGuard.TTL <= 0 {
		return errors.New("shipping.issuanceGuard.ttl must be positive")
	}
	if budget := cfg.RetryPolicy().Budget(); cfg.IssuanceGuard.TTL < budget {
		return fmt.Errorf("shipping.issuanceGuard.ttl %s is shorter than the retry budget %s", cfg.IssuanceGuard.TTL, budget)
	}
	if cfg.IssuanceGuard.PollInterval <= 0 || cfg.IssuanceGuard.PollInterval >= cfg.IssuanceGuard.TTL {
		return fmt.Errorf("shipping.issuanceGuard.pollInterval %s must be positive and below ttl", cfg.IssuanceGuard.PollInterval)
	}
	return nil
}
