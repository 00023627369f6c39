package commands

import (
	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/logging"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/UkralStul/yatube/internal/storage/inmemory"
	"github.com/UkralStul/yatube/internal/storage/postgres"
)

// openStore открывает хранилище, выбранное в настройках. Возвращаемая функция
// закрывает соединения.
func openStore(skipMigrate bool) (storage.Storage, func() error, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		level, err := logging.GormLevel(cfg.GormLogLevel)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		pg, err := postgres.New(postgres.Config{
			DSN:         cfg.DatabaseURL,
			LogLevel:    level,
			Writer:      log,
			SkipMigrate: skipMigrate,
		})
		if err != nil {
			return nil, nil, errors.Annotate(err, "failed to connect to postgres")
		}
		return pg, pg.Close, nil
	default:
		return inmemory.New(), func() error { return nil }, nil
	}
}
