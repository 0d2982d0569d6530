package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Backend variants. Postgres talks to the hosted database directly and
// carries the change feed; REST goes through the plain HTTP backend.
const (
	BackendPostgres = "postgres"
	BackendRest     = "rest"
)

// Identity modes. Session requires a sign-in against the auth service;
// anonymous mints a device-local UUID on first run.
const (
	IdentitySession   = "session"
	IdentityAnonymous = "anonymous"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultAuthAddress   = "localhost:9999"
	defaultLogLevel      = "info"
	defaultEnv           = EnvLocal
	defaultConfigDir     = ".smartledger"
)

type Config struct {
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ConfigDir      string `mapstructure:"config_dir"`
	Backend        string `mapstructure:"backend"`
	IdentityMode   string `mapstructure:"identity_mode"`
	DatabaseURI    string `mapstructure:"database_uri"`
	ServerAddress  string `mapstructure:"server_address"`
	AuthAddress    string `mapstructure:"auth_address"`
	EnableTLS      bool   `mapstructure:"enable_tls"`
	TokenPath      string `mapstructure:"token_path"`
	LocalStorePath string `mapstructure:"local_store_path"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	// Ищем .env рядом с местом запуска, затем уровнем выше
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("BACKEND", BackendRest)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("AUTH_ADDRESS", defaultAuthAddress)
	viper.SetDefault("ENABLE_TLS", false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	backend := viper.GetString("BACKEND")

	// Режим идентификации следует за бэкендом, если не задан явно:
	// postgres работает с сессиями, rest — с анонимным идентификатором.
	identityMode := viper.GetString("IDENTITY_MODE")
	if identityMode == "" {
		identityMode = IdentityAnonymous
		if backend == BackendPostgres {
			identityMode = IdentitySession
		}
	}

	config := &Config{
		Env:            viper.GetString("APP_ENV"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		ConfigDir:      configDir,
		Backend:        backend,
		IdentityMode:   identityMode,
		DatabaseURI:    viper.GetString("DATABASE_URI"),
		ServerAddress:  viper.GetString("SERVER_ADDRESS"),
		AuthAddress:    viper.GetString("AUTH_ADDRESS"),
		EnableTLS:      viper.GetBool("ENABLE_TLS"),
		TokenPath:      filepath.Join(configDir, "token"),
		LocalStorePath: filepath.Join(configDir, "ledger.db"),
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURI == "" {
			return fmt.Errorf("database_uri обязателен для бэкенда postgres")
		}
	case BackendRest:
		if c.ServerAddress == "" {
			return fmt.Errorf("server_address не может быть пустым")
		}
	default:
		return fmt.Errorf("неизвестный бэкенд: %s", c.Backend)
	}

	switch c.IdentityMode {
	case IdentitySession, IdentityAnonymous:
	default:
		return fmt.Errorf("неизвестный режим идентификации: %s", c.IdentityMode)
	}

	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
