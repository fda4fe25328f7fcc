package service

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/dxmate/dxmate/internal/model"
)

type Config struct {
	Address   string           `mapstructure:"address"`
	Schedules []model.Schedule `mapstructure:"schedules"`
}

// ParseConfig reads the serve section under key from viper. The address
// honours flag and environment bindings of key.address.
func ParseConfig(key string) (Config, error) {
	var svc Config
	if err := viper.UnmarshalKey(key, &svc); err != nil {
		return Config{}, err
	}
	if addr := viper.GetString(key + ".address"); addr != "" {
		svc.Address = addr
	}
	if svc.Address == "" {
		svc.Address = model.DefaultAddress
	}
	for _, sc := range svc.Schedules {
		if err := sc.Validate(); err != nil {
			return Config{}, err
		}
		if sc.Cron == "" {
			continue
		}
		if _, err := ParseFlexible(sc.Cron); err != nil {
			return Config{}, fmt.Errorf("%s: parsing cron: %w", sc.Workflow, err)
		}
	}
	return svc, nil
}
