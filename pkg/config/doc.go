// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv (optional .env files) with
// github.com/caarlos0/env/v11 (struct tags). Every fintrack package declares
// its own Config struct with `env` and `envDefault` tags; cmd/fintrack loads
// them through Load:
//
//	var cfg subscription.Config
//	config.MustLoad(&cfg)
//
// A Loader caches one parsed value per struct type. Tests construct their own
// Loader with NewLoader so they never share state with the process default.
package config
