package main

import "github.com/ilyakaznacheev/cleanenv"

type Config struct {
	StoreFile   string `env:"CMAKESTAT_STORE"`
	ListenAddr  string `env:"CMAKESTAT_ADDR" env-default:":8080"`
	SentryDSN   string `env:"CMAKESTAT_SENTRY_DSN"`
	Environment string `env:"CMAKESTAT_ENVIRONMENT" env-default:"development"`
}

func loadConfig() (Config, error) {
	var cfg Config
	err := cleanenv.ReadEnv(&cfg)
	return cfg, err
}
