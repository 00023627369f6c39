package commands

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/logging"
)

var (
	// Глобальные флаги
	configPath  string
	storageType string

	cfg config.Config
	log *logrus.Logger
)

// rootCmd - корневая команда
var rootCmd = &cobra.Command{
	Use:   "yatube",
	Short: "Yatube - социальная сеть для публикации дневников",
	Long: `Yatube - блог-платформа: посты с картинками и группами, комментарии,
подписки на авторов и лента избранного.

Настройки читаются из YAML-файла (--config) и переменных окружения
PORT, DATABASE_URL и YATUBE_*.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return errors.Trace(err)
		}
		if storageType != "" {
			cfg.Storage = storageType
			if err := cfg.Validate(); err != nil {
				return errors.Trace(err)
			}
		}
		log, err = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return errors.Trace(err)
	},
}

// Execute запускает корневую команду.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к YAML-файлу настроек")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "Тип хранилища (in-memory или postgres), важнее настроек из файла")
}
