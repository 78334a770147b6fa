package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProfilePath   string // hcl files
	OverridesPath string // dashboard-saved JSON overrides, optional

	Serve  bool   // run the dashboard server instead of a one-shot extraction
	Source string // extract only this source; empty means all

	Listen      string // overrides the profile's dashboard listen address
	LogFormat   string
	LogLevel    string
	WorkerCount int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProfilePath == "" {
		return nil, errors.New("ProfilePath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return &cfg, nil
}
