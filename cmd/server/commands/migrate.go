package commands

import (
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Создать или обновить схему БД",
	Long: `Выполняет AutoMigrate для пользователей, групп, постов, комментариев и подписок.

Имеет смысл только для хранилища postgres.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage != config.StoragePostgres {
			return errors.NotValidf("migrate with %s storage", cfg.Storage)
		}
		store, closeStore, err := openStore(true)
		if err != nil {
			return errors.Trace(err)
		}
		defer closeStore()

		if err := store.(*postgres.Store).Migrate(cmd.Context()); err != nil {
			return errors.Trace(err)
		}
		log.Info("database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
