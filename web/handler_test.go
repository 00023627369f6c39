package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/media"
	"github.com/UkralStul/yatube/internal/pagecache"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/UkralStul/yatube/internal/storage/inmemory"
)

var (
	testKey  = []byte("0123456789abcdef0123456789abcdef")
	testNow  = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	smallGIF = []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
		0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
		0x0A, 0x00, 0x3B,
	}
)

type testApp struct {
	t        *testing.T
	store    *inmemory.Store
	cache    *pagecache.Memory
	sessions *auth.Sessions
	media    *media.Store
	handler  http.Handler
}

type option func(*Handler)

func newTestApp(t *testing.T, opts ...option) *testApp {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := inmemory.New()
	mediaStore, err := media.New(t.TempDir())
	require.NoError(t, err)

	app := &testApp{
		t:        t,
		store:    store,
		cache:    pagecache.NewMemory(20 * time.Second),
		sessions: auth.NewSessions(testKey, false, store, log),
		media:    mediaStore,
	}
	cfg := Handler{
		Storage:         store,
		Sessions:        app.sessions,
		Cache:           app.cache,
		Media:           mediaStore,
		Log:             log,
		PostsPerPage:    10,
		CommentsPerPage: 10,
		Now:             func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h, err := New(cfg)
	require.NoError(t, err)
	app.handler = h.Routes()
	return app
}

func (a *testApp) user(username string) *domain.User {
	a.t.Helper()
	hash, err := auth.HashPassword("XenaFight1!")
	require.NoError(a.t, err)
	u, err := a.store.CreateUser(context.Background(), &domain.User{Username: username, PasswordHash: hash})
	require.NoError(a.t, err)
	return u
}

func (a *testApp) group(title, slug string) *domain.Group {
	a.t.Helper()
	g, err := a.store.CreateGroup(context.Background(), &domain.Group{Title: title, Slug: slug, Description: "Тестовое описание"})
	require.NoError(a.t, err)
	return g
}

func (a *testApp) post(author *domain.User, text string, group *domain.Group) *domain.Post {
	a.t.Helper()
	p := &domain.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		p.GroupID = &group.ID
	}
	p, err := a.store.CreatePost(context.Background(), p)
	require.NoError(a.t, err)
	return p
}

// cookie логинит пользователя и возвращает cookie сессии.
func (a *testApp) cookie(u *domain.User) *http.Cookie {
	a.t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(a.t, a.sessions.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login/", nil), u))
	cookies := rec.Result().Cookies()
	require.Len(a.t, cookies, 1)
	return cookies[0]
}

func (a *testApp) do(req *http.Request, as *domain.User) *httptest.ResponseRecorder {
	if as != nil {
		req.AddCookie(a.cookie(as))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) get(target string, as *domain.User) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, target, nil), as)
}

func (a *testApp) postForm(target string, values url.Values, as *domain.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, as)
}

func (a *testApp) postMultipart(target string, fields map[string]string, image []byte, as *domain.User) *httptest.ResponseRecorder {
	a.t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "small.gif")
		require.NoError(a.t, err)
		_, err = fw.Write(image)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, as)
}

func (a *testApp) countPosts(filter storage.PostFilter) int {
	a.t.Helper()
	n, err := a.store.CountPosts(context.Background(), filter)
	require.NoError(a.t, err)
	return n
}

func idPath(format string, id uint) string {
	return strings.Replace(format, "{id}", strconv.FormatUint(uint64(id), 10), 1)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Handler{})
	assert.Error(t, err)
}

func TestNotFoundPage(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{"/unexisting_page/", "/group/nope/", "/profile/nobody/", "/posts/999/", "/posts/abc/"} {
		rec := app.get(target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Custom 404", target)
	}
}

func TestFooterYear(t *testing.T) {
	app := newTestApp(t)
	rec := app.get("/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&copy; 2026")
}

func TestPublicPagesRender(t *testing.T) {
	app := newTestApp(t)
	author := app.user("auth_author")
	group := app.group("Test group", "Test-slug")
	post := app.post(author, "Тестовый пост", group)

	pages := []struct{ target, want string }{
		{"/", "Тестовый пост"},
		{"/group/Test-slug/", "Test group"},
		{"/profile/auth_author/", "Всего постов: 1"},
		{idPath("/posts/{id}/", post.ID), "Тестовый пост"},
		{"/auth/signup/", "Зарегистрироваться"},
		{"/auth/login/", "Войти на сайт"},
	}
	for _, tc := range pages {
		rec := app.get(tc.target, nil)
		assert.Equal(t, http.StatusOK, rec.Code, tc.target)
		assert.Contains(t, rec.Body.String(), tc.want, tc.target)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"), tc.target)
	}
}

func TestAuthRequiredRedirects(t *testing.T) {
	app := newTestApp(t)
	author := app.user("auth_author")
	post := app.post(author, "Тестовый пост", nil)

	cases := []struct{ target, want string }{
		{"/create/", "/auth/login/?next=/create/"},
		{"/follow/", "/auth/login/?next=/follow/"},
		{idPath("/posts/{id}/edit/", post.ID), idPath("/auth/login/?next=/posts/{id}/edit/", post.ID)},
		{idPath("/posts/{id}/comment/", post.ID), idPath("/auth/login/?next=/posts/{id}/comment/", post.ID)},
		{"/profile/auth_author/follow/", "/auth/login/?next=/profile/auth_author/follow/"},
	}
	for _, tc := range cases {
		rec := app.get(tc.target, nil)
		assert.Equal(t, http.StatusFound, rec.Code, tc.target)
		assert.Equal(t, tc.want, rec.Header().Get("Location"), tc.target)
	}
}

func TestCSRFFailureRendersForbidden(t *testing.T) {
	app := newTestApp(t, func(h *Handler) { h.CSRFKey = testKey })
	author := app.user("auth_author")

	rec := app.postForm("/create/", url.Values{"text": {"Без токена"}}, author)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Custom 403")
	assert.Equal(t, 0, app.countPosts(storage.PostFilter{}))

	// GET проходит и получает поле с токеном в форме
	rec = app.get("/create/", author)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="csrfmiddlewaretoken"`)
}

func TestMediaServesFilesOnly(t *testing.T) {
	app := newTestApp(t)
	rel, err := app.media.SavePostImage(smallGIF, ".gif")
	require.NoError(t, err)

	rec := app.get("/media/"+rel, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, smallGIF, rec.Body.Bytes())

	for _, target := range []string{"/media/", "/media/posts/", "/media/posts"} {
		rec := app.get(target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), rel, target)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.get("/", nil)
	rec := app.get("/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "yatube_http_requests_total")
}
