package pagecache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterHandler рисует страницу с номером вызова, как лента после нового поста
func counterHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		fmt.Fprintf(w, "<p>render %d</p>", n)
	})
}

func get(h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_HitIsByteIdentical(t *testing.T) {
	cache := NewMemory(time.Minute)
	var calls int32
	h := Middleware(cache, "index_page", "session")(counterHandler(&calls))

	first := get(h, "/")
	second := get(h, "/")

	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, "hit", second.Header().Get("X-Page-Cache"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	require.NoError(t, cache.Clear(context.Background()))
	third := get(h, "/")
	assert.NotEqual(t, first.Body.String(), third.Body.String())
}

func TestMiddleware_VariesOnCookieAndURI(t *testing.T) {
	cache := NewMemory(time.Minute)
	var calls int32
	h := Middleware(cache, "index_page", "session")(counterHandler(&calls))

	anon := get(h, "/")
	user := get(h, "/", &http.Cookie{Name: "session", Value: "abc"})
	page2 := get(h, "/?page=2")

	assert.NotEqual(t, anon.Body.String(), user.Body.String())
	assert.NotEqual(t, anon.Body.String(), page2.Body.String())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	// Прочие cookie на ключ не влияют
	other := get(h, "/", &http.Cookie{Name: "theme", Value: "dark"})
	assert.Equal(t, anon.Body.String(), other.Body.String())
}

func TestMiddleware_SkipsErrorsAndPosts(t *testing.T) {
	cache := NewMemory(time.Minute)
	var calls int32
	h := Middleware(cache, "p", "session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	get(h, "/")
	get(h, "/")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	cache := NewMemory(50 * time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, "k", []byte("v"))
	body, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), body)

	assert.Eventually(t, func() bool {
		_, ok := cache.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedis_UnavailableIsMiss(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	cache, err := NewRedis("redis://127.0.0.1:1/0", "yatube:", time.Minute, log)
	require.NoError(t, err)
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cache.Set(ctx, "k", []byte("v"))
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.NotEmpty(t, hook.AllEntries())

	_, err = NewRedis("://bad", "yatube:", time.Minute, log)
	assert.Error(t, err)
}
