package forms

import (
	"net/http"
	"strings"

	"github.com/juju/errors"
)

// CommentForm - форма комментария.
type CommentForm struct {
	Text string `form:"text" validate:"required"`
}

// ParseCommentForm читает форму комментария из запроса.
func ParseCommentForm(r *http.Request) (*CommentForm, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.NewNotValid(err, "form")
	}
	return &CommentForm{Text: strings.TrimSpace(r.PostFormValue("text"))}, nil
}

// Validate проверяет форму.
func (f *CommentForm) Validate() error {
	return check(f).OrNil()
}
