package logging

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

// New создает логгер с уровнем level ("debug", "info", ...) и форматом
// format ("text" или "json").
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.NewNotValid(err, "log level")
	}
	log.SetLevel(lvl)

	switch format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.NotValidf("log format %q", format)
	}
	return log, nil
}

// GormLevel переводит имя уровня в уровень логгера gorm.
func GormLevel(name string) (logger.LogLevel, error) {
	switch name {
	case "silent":
		return logger.Silent, nil
	case "error":
		return logger.Error, nil
	case "", "warn":
		return logger.Warn, nil
	case "info":
		return logger.Info, nil
	}
	return 0, errors.NotValidf("gorm log level %q", name)
}

// RequestLogger пишет строку лога на каждый запрос. Должен стоять после
// middleware.RequestID, чтобы в лог попал идентификатор запроса.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"remote":     r.RemoteAddr,
			})
			switch {
			case status >= 500:
				entry.Error("request failed")
			case status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request handled")
			}
		})
	}
}
