// Package config provides configuration management for querykit services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// EngineConfig holds the rules engine flags.
type EngineConfig struct {
	CaseInsensitive       bool `mapstructure:"case_insensitive"`
	SplitSearchBySpace    bool `mapstructure:"split_search_by_space"`
	UTCDateTimes          bool `mapstructure:"utc_datetimes"`
	SkipInvalidConditions bool `mapstructure:"skip_invalid_conditions"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig locates the log record database.
type StoreConfig struct {
	URL       string        `mapstructure:"url"`
	Retention time.Duration `mapstructure:"retention"`
}

// ServerConfig holds the gRPC query service settings.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxResults     int           `mapstructure:"max_results"`
}

// FTPConfig addresses the export drop. The password is never read from a
// config file; see FTPPassword.
type FTPConfig struct {
	Addr    string        `mapstructure:"addr"`
	User    string        `mapstructure:"user"`
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportConfig controls scheduled exports. An empty Schedule disables them.
type ExportConfig struct {
	Schedule string `mapstructure:"schedule"`
	Spec     string `mapstructure:"spec"`
	Name     string `mapstructure:"name"`
	Format   string `mapstructure:"format"`
	Compress bool   `mapstructure:"compress"`
}

// Config is the full service configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Server ServerConfig `mapstructure:"server"`
	FTP    FTPConfig    `mapstructure:"ftp"`
	Export ExportConfig `mapstructure:"export"`
}

// Address is the server's listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// FTPPasswordEnv is the only source of the FTP password.
const FTPPasswordEnv = "QK_FTP_PASSWORD"

// FTPPassword returns the FTP password from the environment.
func FTPPassword() string {
	return strings.TrimSpace(os.Getenv(FTPPasswordEnv))
}
