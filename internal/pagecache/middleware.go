package pagecache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/UkralStul/yatube/internal/metrics"
)

// Middleware отдает закешированную страницу, если она есть, иначе рисует и
// сохраняет её. Ключ - prefix, URI запроса и значение cookie varyCookie, так что у
// каждого вошедшего пользователя своя копия. Кешируются только GET с ответом 200.
func Middleware(cache Cache, prefix, varyCookie string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := Key(prefix, r, varyCookie)
			if body, ok := cache.Get(r.Context(), key); ok {
				metrics.RecordCacheLookup(true)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("X-Page-Cache", "hit")
				w.WriteHeader(http.StatusOK)
				w.Write(body)
				return
			}
			metrics.RecordCacheLookup(false)

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			if status := ww.Status(); (status == 0 || status == http.StatusOK) && r.Method == http.MethodGet {
				cache.Set(r.Context(), key, buf.Bytes())
			}
		})
	}
}

// Key строит ключ кеша для запроса.
func Key(prefix string, r *http.Request, varyCookie string) string {
	h := sha256.New()
	h.Write([]byte(r.URL.RequestURI()))
	h.Write([]byte{0})
	if c, err := r.Cookie(varyCookie); err == nil {
		h.Write([]byte(c.Value))
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}
