// Package config loads the server configuration: defaults, an optional
// config file, DREAMJOURNAL_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load
const EnvPrefix = "DREAMJOURNAL"

// MinSecretLen минимальная длина секрета подписи JWT
const MinSecretLen = 32

// Configuration keys
const (
	KeyAddr                 = "addr"
	KeyDBPath               = "db_path"
	KeyJWTSecret            = "jwt_secret"
	KeyAccessTokenTTL       = "access_token_ttl"
	KeyRefreshTokenTTL      = "refresh_token_ttl"
	KeyAllowAnonymousWrites = "allow_anonymous_writes"
	KeyLogLevel             = "log_level"
	KeyLogFile              = "log_file"
	KeyShutdownTimeout      = "shutdown_timeout"
	KeyTokenCleanupInterval = "token_cleanup_interval"
)

// Config is the resolved server configuration
type Config struct {
	Addr                 string
	DBPath               string
	JWTSecret            string
	LogLevel             string
	LogFile              string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	ShutdownTimeout      time.Duration
	TokenCleanupInterval time.Duration
	AllowAnonymousWrites bool
}

// SetDefaults registers default values
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyDBPath, "dreamjournal.db")
	v.SetDefault(KeyAccessTokenTTL, 15*time.Minute)
	v.SetDefault(KeyRefreshTokenTTL, 30*24*time.Hour)
	v.SetDefault(KeyAllowAnonymousWrites, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyTokenCleanupInterval, time.Hour)
}

// BindFlags связывает флаги командной строки с ключами конфигурации.
// Имена флагов пишутся через дефис: --db-path -> db_path.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load читает конфигурацию. configFile может быть пустым: тогда ищется
// dreamjournal-server.{yaml,toml,json} в текущем каталоге, и его отсутствие не ошибка.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dreamjournal-server")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := &Config{
		Addr:                 v.GetString(KeyAddr),
		DBPath:               v.GetString(KeyDBPath),
		JWTSecret:            v.GetString(KeyJWTSecret),
		LogLevel:             v.GetString(KeyLogLevel),
		LogFile:              v.GetString(KeyLogFile),
		AccessTokenTTL:       v.GetDuration(KeyAccessTokenTTL),
		RefreshTokenTTL:      v.GetDuration(KeyRefreshTokenTTL),
		ShutdownTimeout:      v.GetDuration(KeyShutdownTimeout),
		TokenCleanupInterval: v.GetDuration(KeyTokenCleanupInterval),
		AllowAnonymousWrites: v.GetBool(KeyAllowAnonymousWrites),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if len(c.JWTSecret) < MinSecretLen {
		errs = append(errs, fmt.Errorf("jwt_secret must be at least %d bytes (set %s_JWT_SECRET)", MinSecretLen, EnvPrefix))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access_token_ttl must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("refresh_token_ttl must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
