package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	tomlstore "github.com/bnema/numsel/internal/adapters/store/toml"
	"github.com/bnema/numsel/internal/domain"
)

const (
	envPrefix       = "NUMSEL"
	configDirName   = ".numsel"
	configFileName  = "config"
	configFileType  = "toml"
	dotenvFile      = ".env"
	backendFile     = "file"
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

const (
	keyTotalNumbers   = "total_numbers"
	keyStoreBackend   = "store.backend"
	keyStorePath      = tomlstore.StorePathKey
	keyRedisAddr      = "redis.addr"
	keyRedisPassword  = "redis.password"
	keyRedisDB        = "redis.db"
	keyRedisKey       = "redis.key"
	keyPostgresDSN    = "postgres.dsn"
	keyPostgresTable  = "postgres.table"
	keyAMQPURL        = "amqp.url"
	keyAMQPExchange   = "amqp.exchange"
	keyHTTPAddr       = "http.addr"
	keyHTTPClaimRPS   = "http.claim_rps"
	keyHTTPClaimBurst = "http.claim_burst"
	keyHTTPTrustXFF   = "http.trust_xff"
	keyLogLevel       = "log.level"
	keyLogJSON        = "log.json"
)

// newConfig returns a viper instance with defaults and environment bindings.
// Config files are read later by loadConfig once flags are parsed.
func newConfig() *viper.Viper {
	cfg := viper.New()
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()
	_ = cfg.BindEnv(keyTotalNumbers, envPrefix+"_TOTAL_NUMBERS", "TOTAL_NUMBERS")

	cfg.SetDefault(keyTotalNumbers, domain.DefaultTotal)
	cfg.SetDefault(keyStoreBackend, backendFile)
	cfg.SetDefault(keyRedisAddr, "127.0.0.1:6379")
	cfg.SetDefault(keyRedisPassword, "")
	cfg.SetDefault(keyRedisDB, 0)
	cfg.SetDefault(keyRedisKey, "numbers")
	cfg.SetDefault(keyPostgresDSN, "")
	cfg.SetDefault(keyPostgresTable, "numbers")
	cfg.SetDefault(keyAMQPURL, "")
	cfg.SetDefault(keyAMQPExchange, "numsel")
	cfg.SetDefault(keyHTTPAddr, ":8080")
	cfg.SetDefault(keyHTTPClaimRPS, 2.0)
	cfg.SetDefault(keyHTTPClaimBurst, 5)
	cfg.SetDefault(keyHTTPTrustXFF, false)
	cfg.SetDefault(keyLogLevel, "")
	cfg.SetDefault(keyLogJSON, false)

	return cfg
}

// loadConfig reads .env from the working directory and then the config file,
// either the explicit path or ~/.numsel/config.toml. Missing files are fine.
func loadConfig(cfg *viper.Viper, explicitPath string) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotenvFile, err)
	}

	if explicitPath != "" {
		cfg.SetConfigFile(explicitPath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", explicitPath, err)
		}
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.AddConfigPath(filepath.Join(homeDir, configDirName))
	cfg.SetConfigName(configFileName)
	cfg.SetConfigType(configFileType)

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	return nil
}

func validateConfig(cfg *viper.Viper) error {
	if total := cfg.GetInt(keyTotalNumbers); total < 1 {
		return fmt.Errorf("%s must be positive, got %d", keyTotalNumbers, total)
	}

	switch backend := cfg.GetString(keyStoreBackend); backend {
	case backendFile, backendMemory, backendRedis:
	case backendPostgres:
		if strings.TrimSpace(cfg.GetString(keyPostgresDSN)) == "" {
			return fmt.Errorf("%s is required when %s=%s", keyPostgresDSN, keyStoreBackend, backendPostgres)
		}
	default:
		return fmt.Errorf("unknown %s %q", keyStoreBackend, backend)
	}

	if level := strings.TrimSpace(cfg.GetString(keyLogLevel)); level != "" && hclog.LevelFromString(level) == hclog.NoLevel {
		return fmt.Errorf("unknown %s %q", keyLogLevel, level)
	}

	if cfg.GetFloat64(keyHTTPClaimRPS) <= 0 {
		return fmt.Errorf("%s must be > 0", keyHTTPClaimRPS)
	}
	if cfg.GetInt(keyHTTPClaimBurst) <= 0 {
		return fmt.Errorf("%s must be > 0", keyHTTPClaimBurst)
	}

	return nil
}

// newLogger builds the process logger. One-shot commands stay quiet unless a
// level is configured; long-running ones default to info.
func newLogger(cfg *viper.Viper, output io.Writer, longRunning bool) hclog.Logger {
	level := hclog.LevelFromString(cfg.GetString(keyLogLevel))
	if level == hclog.NoLevel {
		level = hclog.Warn
		if longRunning {
			level = hclog.Info
		}
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "numsel",
		Level:      level,
		Output:     output,
		JSONFormat: cfg.GetBool(keyLogJSON),
	})
}
