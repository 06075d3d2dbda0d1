package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PayrollConfig holds engine tunables that operators may change without a
// redeploy. The async threshold is an employee-count cutoff: rosters above
// it are computed by the background worker instead of the request path.
type PayrollConfig struct {
	AsyncThreshold    int           `mapstructure:"asyncThreshold"`
	DefaultPeriodDays int           `mapstructure:"defaultPeriodDays"`
	DefaultBaseDays   int           `mapstructure:"defaultBaseDays"`
	WorkerInterval    time.Duration `mapstructure:"workerInterval"`
	WorkerBatchSize   int           `mapstructure:"workerBatchSize"`
	RecoveryThreshold time.Duration `mapstructure:"recoveryThreshold"`
}

func DefaultPayrollConfig() PayrollConfig {
	return PayrollConfig{
		AsyncThreshold:    25,
		DefaultPeriodDays: 30,
		DefaultBaseDays:   30,
		WorkerInterval:    15 * time.Second,
		WorkerBatchSize:   10,
		RecoveryThreshold: 15 * time.Minute,
	}
}

type PayrollConfigHolder struct {
	current atomic.Value // holds PayrollConfig
}

func NewPayrollConfigHolder() (*PayrollConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("payroll")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/nomina")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NOMINA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayrollConfig()
	v.SetDefault("payroll.asyncThreshold", defaults.AsyncThreshold)
	v.SetDefault("payroll.defaultPeriodDays", defaults.DefaultPeriodDays)
	v.SetDefault("payroll.defaultBaseDays", defaults.DefaultBaseDays)
	v.SetDefault("payroll.workerInterval", defaults.WorkerInterval)
	v.SetDefault("payroll.workerBatchSize", defaults.WorkerBatchSize)
	v.SetDefault("payroll.recoveryThreshold", defaults.RecoveryThreshold)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PayrollConfig
	if err := v.UnmarshalKey("payroll", &cfg); err != nil {
		return nil, err
	}
	if err := validatePayrollConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PayrollConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayrollConfig
		if err := v.UnmarshalKey("payroll", &updated); err != nil {
			log.Printf("[payroll-config] reload failed: %v", err)
			return
		}
		if err := validatePayrollConfig(updated); err != nil {
			log.Printf("[payroll-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[payroll-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPayrollConfigHolder returns a holder with fixed values, for tests.
func NewStaticPayrollConfigHolder(cfg PayrollConfig) *PayrollConfigHolder {
	holder := &PayrollConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PayrollConfigHolder) Get() PayrollConfig {
	return h.current.Load().(PayrollConfig)
}

func validatePayrollConfig(cfg PayrollConfig) error {
	if cfg.AsyncThreshold <= 0 {
		return errors.New("payroll.asyncThreshold must be positive")
	}
	if cfg.DefaultPeriodDays <= 0 || cfg.DefaultBaseDays <= 0 {
		return errors.New("payroll.defaultPeriodDays and defaultBaseDays must be positive")
	}
	return nil
}
