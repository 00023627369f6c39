// Package auth хранит вошедшего пользователя в подписанной cookie и отдает
// его обработчикам через контекст запроса.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/yatube/internal/domain"
)

const (
	// CookieName - имя cookie сессии, по нему же различаются записи кеша страниц.
	CookieName = "yatube_session"

	userIDKey = "user_id"
	maxAge    = 14 * 24 * 60 * 60
)

type contextKey string

const userKey = contextKey("user")

// UserGetter - то, что нужно сессиям от хранилища.
type UserGetter interface {
	GetUserByID(ctx context.Context, id uint) (*domain.User, error)
}

// Sessions управляет cookie сессии.
type Sessions struct {
	store sessions.Store
	users UserGetter
	log   logrus.FieldLogger
}

// NewSessions создает хранилище сессий, подписанных key.
func NewSessions(key []byte, secure bool, users UserGetter, log logrus.FieldLogger) *Sessions {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store, users: users, log: log}
}

// Login запоминает пользователя в сессии.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	// Ошибка означает испорченную cookie, в этом случае начинаем новую сессию
	session, _ := s.store.Get(r, CookieName)
	for k := range session.Values {
		delete(session.Values, k)
	}
	session.Values[userIDKey] = user.ID
	return errors.Annotate(session.Save(r, w), "save session")
}

// Logout удаляет cookie сессии.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, CookieName)
	session.Options.MaxAge = -1
	return errors.Annotate(session.Save(r, w), "delete session")
}

// Middleware загружает пользователя из сессии в контекст запроса.
// Неизвестный или удаленный пользователь равносилен анониму.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.store.Get(r, CookieName)
		if err != nil {
			s.log.WithError(err).Debug("ignoring invalid session cookie")
			next.ServeHTTP(w, r)
			return
		}
		id, ok := session.Values[userIDKey].(uint)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.users.GetUserByID(r.Context(), id)
		if err != nil {
			if !errors.Is(err, errors.NotFound) {
				s.log.WithError(err).Error("failed to load session user")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser кладет пользователя в контекст.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// CurrentUser возвращает вошедшего пользователя, если он есть.
func CurrentUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok && user != nil
}

// RequireLogin перенаправляет анонимов на страницу входа с параметром next.
func RequireLogin(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CurrentUser(r.Context()); !ok {
				http.Redirect(w, r, LoginURL(loginURL, r.URL.RequestURI()), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL добавляет к адресу входа next; слеши не экранируются,
// чтобы получалось /auth/login/?next=/create/.
func LoginURL(loginURL, next string) string {
	return loginURL + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// SafeNext возвращает next, только если это локальный путь, иначе fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
