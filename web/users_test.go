package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/yatube/internal/auth"
	ratelimit "github.com/UkralStul/yatube/internal/middleware"
)

func signupValues(username string) url.Values {
	return url.Values{
		"first_name": {"Xena"},
		"last_name":  {"Warrior"},
		"username":   {username},
		"email":      {"xena@example.com"},
		"password1":  {"XenaFight1!"},
		"password2":  {"XenaFight1!"},
	}
}

func TestSignup(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/auth/signup/", signupValues("warrior_princess"), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	user, err := app.store.GetUserByUsername(context.Background(), "warrior_princess")
	require.NoError(t, err)
	assert.Equal(t, "Xena Warrior", user.FullName())
	assert.Equal(t, "xena@example.com", user.Email)
	assert.NotEqual(t, "XenaFight1!", user.PasswordHash)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "XenaFight1!"))

	// Повторная регистрация с тем же именем - ошибка поля
	rec = app.postForm("/auth/signup/", signupValues("warrior_princess"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Пользователь с таким именем уже существует.")
}

func TestSignup_PasswordMismatch(t *testing.T) {
	app := newTestApp(t)
	values := signupValues("warrior_princess")
	values.Set("password2", "XenaFight2!")

	rec := app.postForm("/auth/signup/", values, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Введенные пароли не совпадают.")
	assert.Contains(t, rec.Body.String(), `value="warrior_princess"`)

	_, err := app.store.GetUserByUsername(context.Background(), "warrior_princess")
	assert.Error(t, err)
}

func TestSignup_PasswordTooLong(t *testing.T) {
	app := newTestApp(t)
	values := signupValues("warrior_princess")
	values.Set("password1", strings.Repeat("Zq7!", 20))
	values.Set("password2", strings.Repeat("Zq7!", 20))

	rec := app.postForm("/auth/signup/", values, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Введённый пароль слишком длинный.")

	_, err := app.store.GetUserByUsername(context.Background(), "warrior_princess")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.user("auth_author")

	rec := app.get("/auth/login/?next=/create/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="next" value="/create/"`)

	rec = app.postForm("/auth/login/", url.Values{
		"username": {"auth_author"},
		"password": {"XenaFight1!"},
		"next":     {"/create/"},
	}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/create/", rec.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	req, err := http.NewRequest(http.MethodGet, "/create/", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	rec = app.do(req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Новый пост")
}

func TestLogin_BadCredentialsAndUnsafeNext(t *testing.T) {
	app := newTestApp(t)
	app.user("auth_author")

	for _, values := range []url.Values{
		{"username": {"auth_author"}, "password": {"wrong"}},
		{"username": {"nobody"}, "password": {"XenaFight1!"}},
	} {
		rec := app.postForm("/auth/login/", values, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Пожалуйста, введите правильные имя пользователя и пароль.")
		assert.Empty(t, rec.Result().Cookies())
	}

	rec := app.postForm("/auth/login/", url.Values{
		"username": {"auth_author"},
		"password": {"XenaFight1!"},
		"next":     {"https://evil.example/"},
	}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	author := app.user("auth_author")

	rec := app.get("/auth/logout/", author)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Вы вышли из своей учётной записи.")
	assert.NotContains(t, rec.Body.String(), "/auth/logout/")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestAuthRateLimit(t *testing.T) {
	log, _ := test.NewNullLogger()
	app := newTestApp(t, func(h *Handler) { h.Limiter = ratelimit.NewRateLimiter(0.001, 1, log) })
	app.user("auth_author")

	values := url.Values{"username": {"auth_author"}, "password": {"wrong"}}
	assert.Equal(t, http.StatusOK, app.postForm("/auth/login/", values, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, app.postForm("/auth/login/", values, nil).Code)

	// Страница входа по-прежнему открывается
	assert.Equal(t, http.StatusOK, app.get("/auth/login/", nil).Code)
}
