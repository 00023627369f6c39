package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"
	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/forms"
	"github.com/UkralStul/yatube/internal/paginator"
)

//go:embed templates
var templateFS embed.FS

type pages map[string]*template.Template

// view - контекст шаблона. Заполняются только нужные странице поля.
type view struct {
	Title string
	Path  string

	// Заполняет render.
	User      *domain.User
	Year      int
	CSRFField template.HTML

	Page     paginator.Page
	Posts    []*domain.Post
	Group    *domain.Group
	Groups   []*domain.Group
	Author   *domain.User
	Post     *domain.Post
	Comments []*domain.Comment

	AuthorPosts int
	Followers   int
	Following   bool
	IsOwner     bool

	Form   interface{}
	Errors *forms.ValidationError
	IsEdit bool
	Next   string
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02.01.2006 15:04") },
	"ago":  humanize.Time,
	"comma": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"truncate": domain.Truncate,
	"media": func(p string) string {
		return "/media/" + strings.TrimPrefix(path.Clean("/"+p), "/")
	},
	"linebreaksbr": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
	"groupSelected": func(id uint, selected string) bool {
		return selected != "" && selected == uintString(id)
	},
}

// parsePages разбирает каждую страницу вместе с базовым шаблоном и общими блоками.
func parsePages() (pages, error) {
	names, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, errors.Trace(err)
	}
	out := make(pages, len(names))
	for _, name := range names {
		base := path.Base(name)
		t, err := template.New(base).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/includes/*.html",
			name,
		)
		if err != nil {
			return nil, errors.Annotatef(err, "parse template %s", base)
		}
		out[base] = t
	}
	return out, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, v *view) {
	h.renderStatus(w, r, http.StatusOK, name, v)
}

// renderStatus рисует страницу в буфер и только потом пишет ответ, так что
// ошибка шаблона превращается в 500, а не в обрезанную страницу.
func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, v *view) {
	t, ok := h.pages[name]
	if !ok {
		h.Log.WithField("template", name).Error("unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	v.User = currentUser(r)
	v.Year = h.Now().Year()
	v.CSRFField = csrf.TemplateField(r)
	if v.Errors == nil {
		v.Errors = &forms.ValidationError{}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", v); err != nil {
		h.Log.WithError(err).WithField("template", name).Error("failed to render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
