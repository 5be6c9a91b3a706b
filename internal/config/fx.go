package config

import "go.uber.org/fx"

func provideValidated() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Module loads and validates the application configuration.
var Module = fx.Module("config",
	fx.Provide(provideValidated),
)
