package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"engine.case_insensitive":        false,
	"engine.split_search_by_space":   false,
	"engine.utc_datetimes":           true,
	"engine.skip_invalid_conditions": false,
	"log.level":                      "info",
	"log.format":                     "json",
	"store.url":                      "sqlite://./data/querykit.db",
	"store.retention":                "0s",
	"server.host":                    "0.0.0.0",
	"server.port":                    50061,
	"server.request_timeout":         "30s",
	"server.max_results":             1000,
	"ftp.addr":                       "",
	"ftp.user":                       "",
	"ftp.dir":                        "",
	"ftp.timeout":                    "30s",
	"export.schedule":                "",
	"export.spec":                    "",
	"export.name":                    "",
	"export.format":                  "json",
	"export.compress":                false,
}

// flagKeys binds the CLI's persistent flags to config keys.
var flagKeys = map[string]string{
	"db-url":     "store.url",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// LoadConfig loads configuration with precedence: changed CLI flags >
// QK_ environment > config file > defaults. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("QK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxResults <= 0 {
		return fmt.Errorf("server.max_results must be positive, got %d", cfg.Server.MaxResults)
	}
	if cfg.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if cfg.Store.Retention < 0 {
		return fmt.Errorf("store.retention must be non-negative, got %v", cfg.Store.Retention)
	}
	if cfg.FTP.Timeout < 0 {
		return fmt.Errorf("ftp.timeout must be non-negative, got %v", cfg.FTP.Timeout)
	}
	if cfg.Export.Schedule != "" && cfg.FTP.Addr == "" {
		return fmt.Errorf("export.schedule requires ftp.addr")
	}
	if cfg.Export.Schedule != "" && cfg.Export.Spec == "" {
		return fmt.Errorf("export.schedule requires export.spec")
	}
	return nil
}

// validateNoSecretsInConfig keeps the FTP password environment-only.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("ftp.password") || v.InConfig("password") {
		return fmt.Errorf("FTP password not allowed in config files (use %s environment variable)", FTPPasswordEnv)
	}
	return nil
}
