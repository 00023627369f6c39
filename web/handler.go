// Package web - HTML-интерфейс: маршруты, обработчики и шаблоны.
package web

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/dataloader"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/logging"
	"github.com/UkralStul/yatube/internal/media"
	"github.com/UkralStul/yatube/internal/metrics"
	ratelimit "github.com/UkralStul/yatube/internal/middleware"
	"github.com/UkralStul/yatube/internal/pagecache"
	"github.com/UkralStul/yatube/internal/storage"
)

const (
	loginURL = "/auth/login/"

	// IndexCachePrefix - префикс ключей кеша главной страницы.
	IndexCachePrefix = "yatube:index"
)

// Handler содержит все зависимости, которые нужны обработчикам.
type Handler struct {
	Storage  storage.Storage
	Sessions *auth.Sessions
	Cache    pagecache.Cache
	Media    *media.Store
	Limiter  *ratelimit.RateLimiter
	Log      logrus.FieldLogger

	// CSRFKey - 32 байта ключа gorilla/csrf; пустой ключ отключает проверку.
	CSRFKey       []byte
	SecureCookies bool

	PostsPerPage    int
	CommentsPerPage int

	// Now подменяется в тестах.
	Now func() time.Time

	pages pages
}

// New проверяет зависимости и разбирает шаблоны.
func New(h Handler) (*Handler, error) {
	if h.Storage == nil || h.Sessions == nil || h.Cache == nil || h.Media == nil {
		return nil, errors.NotValidf("handler without storage, sessions, cache or media")
	}
	if h.Log == nil {
		h.Log = logrus.StandardLogger()
	}
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.PostsPerPage < 1 {
		h.PostsPerPage = 10
	}
	if h.CommentsPerPage < 1 {
		h.CommentsPerPage = 10
	}
	pages, err := parsePages()
	if err != nil {
		return nil, errors.Trace(err)
	}
	h.pages = pages
	return &h, nil
}

// Routes собирает роутер приложения.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(h.Sessions.Middleware)
	r.Use(dataloader.Middleware(h.Storage))
	if len(h.CSRFKey) > 0 {
		r.Use(csrf.Protect(h.CSRFKey,
			csrf.Secure(h.SecureCookies),
			csrf.Path("/"),
			csrf.CookieName("csrftoken"),
			csrf.FieldName("csrfmiddlewaretoken"),
			csrf.ErrorHandler(http.HandlerFunc(h.csrfFailure)),
		))
	}

	r.NotFound(h.notFound)

	r.Handle("/metrics", metrics.Handler())
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(filesOnly{http.Dir(h.Media.Root)})))

	r.With(pagecache.Middleware(h.Cache, IndexCachePrefix, auth.CookieName)).Get("/", h.index)
	r.Get("/group/{slug}/", h.groupPosts)
	r.Get("/profile/{username}/", h.profile)
	r.Get("/posts/{postID}/", h.postDetail)

	r.Route("/auth", func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(h.Limiter.Handler)
		}
		r.Get("/signup/", h.signup)
		r.Post("/signup/", h.signup)
		r.Get("/login/", h.login)
		r.Post("/login/", h.login)
		r.Get("/logout/", h.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin(loginURL))

		r.Get("/create/", h.postCreate)
		r.Post("/create/", h.postCreate)
		r.Get("/posts/{postID}/edit/", h.postEdit)
		r.Post("/posts/{postID}/edit/", h.postEdit)
		r.Get("/posts/{postID}/comment/", h.addComment)
		r.Post("/posts/{postID}/comment/", h.addComment)

		r.Get("/follow/", h.followIndex)
		r.Get("/profile/{username}/follow/", h.profileFollow)
		r.Get("/profile/{username}/unfollow/", h.profileUnfollow)
	})
	return r
}

// currentUser - вошедший пользователь или nil.
func currentUser(r *http.Request) *domain.User {
	user, _ := auth.CurrentUser(r.Context())
	return user
}

// postID читает идентификатор поста из пути; нечисловой id - это 404.
func postID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "postID"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.NotFoundf("post %q", chi.URLParam(r, "postID"))
	}
	return uint(id), nil
}

// fail отвечает на ошибку обработчика: 404 для отсутствующих записей, 400
// для нечитаемой формы, иначе 500 с записью в лог.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		h.notFound(w, r)
	case errors.Is(err, errors.NotValid):
		h.renderStatus(w, r, http.StatusBadRequest, "400.html", &view{Title: "Некорректный запрос"})
	default:
		h.Log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
			"stack":      errors.ErrorStack(err),
		}).WithError(err).Error("request handler failed")
		h.renderStatus(w, r, http.StatusInternalServerError, "500.html", &view{Title: "Ошибка сервера"})
	}
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.renderStatus(w, r, http.StatusNotFound, "404.html", &view{Title: "Страница не найдена", Path: r.URL.Path})
}

func (h *Handler) csrfFailure(w http.ResponseWriter, r *http.Request) {
	h.Log.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"reason": csrf.FailureReason(r),
	}).Warn("csrf check failed")
	h.renderStatus(w, r, http.StatusForbidden, "403csrf.html", &view{Title: "Доступ запрещён"})
}

// filesOnly отдаёт только файлы: каталоги выглядят несуществующими, чтобы
// FileServer не показывал их содержимое.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}
