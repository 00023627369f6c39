package commands

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/media"
	"github.com/UkralStul/yatube/internal/middleware"
	"github.com/UkralStul/yatube/internal/pagecache"
	"github.com/UkralStul/yatube/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер",
	Long: `Запускает веб-сервер на адресе из настроек.

Примеры:
  yatube serve                          # in-memory хранилище с демо-данными
  yatube serve --storage postgres       # нужен DATABASE_URL
  yatube serve -c config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	log.Infof("Starting server with %s storage", cfg.Storage)
	store, closeStore, err := openStore(false)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeStore()

	if cfg.Storage == config.StorageInMemory && cfg.Seed {
		// Заполним данными для демонстрации
		if err := fillWithMockData(ctx, store); err != nil {
			return errors.Annotate(err, "fill with mock data")
		}
	}

	cache, closeCache, err := openCache(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeCache()

	mediaStore, err := media.New(cfg.MediaRoot)
	if err != nil {
		return errors.Trace(err)
	}

	sessionKey, err := secretKey(cfg.SessionKey, "session_key")
	if err != nil {
		return errors.Trace(err)
	}
	csrfKey, err := secretKey(cfg.CSRFKey, "csrf_key")
	if err != nil {
		return errors.Trace(err)
	}

	h, err := web.New(web.Handler{
		Storage:         store,
		Sessions:        auth.NewSessions(sessionKey, cfg.SecureCookies, store, log),
		Cache:           cache,
		Media:           mediaStore,
		Limiter:         middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, log),
		Log:             log,
		CSRFKey:         csrfKey,
		SecureCookies:   cfg.SecureCookies,
		PostsPerPage:    cfg.PostsPerPage,
		CommentsPerPage: cfg.CommentsPerPage,
	})
	if err != nil {
		return errors.Trace(err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on http://localhost%s/", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Annotate(err, "server failed to start")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Annotate(srv.Shutdown(shutdownCtx), "shutdown")
}

// openCache создает кеш главной страницы по настройкам.
func openCache(ctx context.Context) (pagecache.Cache, func() error, error) {
	if cfg.Cache != config.CacheRedis {
		return pagecache.NewMemory(cfg.IndexCacheTTL), func() error { return nil }, nil
	}
	rc, err := pagecache.NewRedis(cfg.RedisURL, web.IndexCachePrefix, cfg.IndexCacheTTL, log)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := rc.Ping(ctx); err != nil {
		rc.Close()
		return nil, nil, errors.Trace(err)
	}
	return rc, rc.Close, nil
}

// secretKey возвращает ключ из настроек или случайный. Случайный ключ
// обнуляет сессии при каждом перезапуске.
func secretKey(configured, name string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Annotatef(err, "generate %s", name)
	}
	log.Warnf("%s is not set, using a random key; sessions will not survive a restart", name)
	return key, nil
}
