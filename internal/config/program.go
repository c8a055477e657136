package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ProgramDefaults seeds the rule-set of a cashback program created lazily on
// first apply. Percent defaults to zero so an unconfigured company never
// credits anything until an operator turns the program on.
type ProgramDefaults struct {
	Percent string `mapstructure:"percent"`
	Base    string `mapstructure:"base"`
	Trigger string `mapstructure:"trigger"`
}

func DefaultProgramDefaults() ProgramDefaults {
	return ProgramDefaults{
		Percent: "0.00",
		Base:    "total",
		Trigger: "payment_completed",
	}
}

type ProgramDefaultsHolder struct {
	current atomic.Value // holds ProgramDefaults
}

func NewProgramDefaultsHolder() (*ProgramDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("rebata")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/rebata/config") // Volume-mounted config
	v.AddConfigPath("/etc/rebata")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("REBATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultProgramDefaults()
		v.SetDefault("program.percent", defaults.Percent)
		v.SetDefault("program.base", defaults.Base)
		v.SetDefault("program.trigger", defaults.Trigger)
	}

	var cfg ProgramDefaults
	if err := v.UnmarshalKey("program", &cfg); err != nil {
		return nil, err
	}
	if err := validateProgramDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &ProgramDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ProgramDefaults
		if err := v.UnmarshalKey("program", &updated); err != nil {
			log.Printf("[program-config] reload failed: %v", err)
			return
		}
		if err := validateProgramDefaults(updated); err != nil {
			log.Printf("[program-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[program-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticProgramDefaults returns a holder pinned to the given values,
// bypassing file watching. Used by tests and embedded setups.
func NewStaticProgramDefaults(cfg ProgramDefaults) (*ProgramDefaultsHolder, error) {
	if err := validateProgramDefaults(cfg); err != nil {
		return nil, err
	}
	holder := &ProgramDefaultsHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *ProgramDefaultsHolder) Get() ProgramDefaults {
	return h.current.Load().(ProgramDefaults)
}

func validateProgramDefaults(cfg ProgramDefaults) error {
	percent, err := decimal.NewFromString(strings.TrimSpace(cfg.Percent))
	if err != nil || percent.IsNegative() {
		return errors.New("program.percent must be a decimal >= 0")
	}
	switch cfg.Base {
	case "subtotal", "total":
	default:
		return errors.New("program.base must be subtotal or total")
	}
	if cfg.Trigger != "payment_completed" {
		return errors.New("program.trigger must be payment_completed")
	}
	return nil
}
