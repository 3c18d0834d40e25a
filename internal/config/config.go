// Package config содержит логику чтения конфигурации административного сервиса SOS Cafe.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DefaultScanPageSize задаёт размер страницы при чтении раздела, если он не задан.
const DefaultScanPageSize = 1000

// ErrStorageRequired возвращается, если не указана строка подключения к хранилищу.
var ErrStorageRequired = errors.New("storage connection string is required (SOSCAFE_STORAGE or -d)")

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress   string `env:"RUN_ADDRESS"`
	Storage      string `env:"SOSCAFE_STORAGE"`
	AuthSecret   string `env:"AUTH_SECRET"`
	ScanPageSize int    `env:"SCAN_PAGE_SIZE"`
	SeedFile     string `env:"SEED_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.Storage, "d", "", "storage connection string (memory://, postgres://, Azure Tables)")
	flag.StringVar(&cfg.AuthSecret, "k", "", "HMAC secret for bearer tokens")
	flag.IntVar(&cfg.ScanPageSize, "p", DefaultScanPageSize, "rows per store page during partition scans")
	flag.StringVar(&cfg.SeedFile, "s", "", "JSON fixture loaded at startup")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.Storage != "" {
		cfg.Storage = envCfg.Storage
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.ScanPageSize != 0 {
		cfg.ScanPageSize = envCfg.ScanPageSize
	}
	if envCfg.SeedFile != "" {
		cfg.SeedFile = envCfg.SeedFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ScanPageSize <= 0 {
		cfg.ScanPageSize = DefaultScanPageSize
	}

	if cfg.Storage == "" {
		return nil, ErrStorageRequired
	}

	return cfg, nil
}
