// cmd/smartledger/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/slog"

	"smartledger/cmd/smartledger/cmd/types"
	"smartledger/internal/app/client"
	"smartledger/internal/app/client/config"
	"smartledger/internal/utils/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	cfg          *config.Config
	log          *slog.Logger
	app          *client.App
	serverURL    string
	backendName  string
	identityMode string
)

var rootCmd = &cobra.Command{
	Use:   "smartledger",
	Short: "Smart Ledger - персональный финансовый дашборд",
	Long: `Smart Ledger — клиент финансового дашборда на одну страницу:
баланс, расходы, продажи, заказы и напоминания.

Каждая секция хранит одну актуальную запись владельца и сохраняется
целиком по кнопке Save.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Загружаем конфигурацию
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if backendName != "" {
		cfg.Backend = backendName
	}
	if identityMode != "" {
		cfg.IdentityMode = identityMode
	}

	// Настраиваем логгер
	log = logger.New(cfg.Env)

	// Создаем приложение
	app, err = client.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Ищем конфиг в стандартных местах
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		configDir := filepath.Join(home, ".smartledger")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Конфиг не найден, используем значения по умолчанию
	}

	return config.MustLoad(), nil
}

func init() {
	cobra.OnInitialize()

	// Глобальные флаги
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес REST бэкенда")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "бэкенд записей (postgres|rest)")
	rootCmd.PersistentFlags().StringVar(&identityMode, "identity", "", "режим идентификации (session|anonymous)")
}
