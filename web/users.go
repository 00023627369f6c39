package web

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/forms"
	"github.com/UkralStul/yatube/internal/metrics"
)

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.render(w, r, "signup.html", &view{Title: "Зарегистрироваться", Form: &forms.SignupForm{}})
		return
	}
	form, err := forms.ParseSignupForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = form.Validate()
	if err == nil {
		err = h.createUser(r, form)
	}
	if verr, ok := forms.AsValidationError(err); ok {
		h.render(w, r, "signup.html", &view{Title: "Зарегистрироваться", Form: form, Errors: verr})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	metrics.RecordCreated("user")
	redirect(w, r, "/")
}

func (h *Handler) createUser(r *http.Request, form *forms.SignupForm) error {
	hash, err := auth.HashPassword(form.Password1)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = h.Storage.CreateUser(r.Context(), &domain.User{
		Username:     form.Username,
		Email:        form.Email,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		PasswordHash: hash,
		DateJoined:   h.Now(),
	})
	return forms.FromConstraint(err, "username", forms.MsgUsernameTaken)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.render(w, r, "login.html", &view{
			Title: "Войти",
			Form:  &forms.LoginForm{},
			Next:  auth.SafeNext(r.URL.Query().Get("next"), ""),
		})
		return
	}
	form, err := forms.ParseLoginForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.authenticate(r, form)
	if verr, ok := forms.AsValidationError(err); ok {
		form.Password = ""
		h.render(w, r, "login.html", &view{
			Title:  "Войти",
			Form:   form,
			Errors: verr,
			Next:   auth.SafeNext(form.Next, ""),
		})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Sessions.Login(w, r, user); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, auth.SafeNext(form.Next, "/"))
}

// authenticate проверяет имя и пароль. Неизвестное имя и неверный пароль
// дают одну и ту же ошибку формы.
func (h *Handler) authenticate(r *http.Request, form *forms.LoginForm) (*domain.User, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	bad := &forms.ValidationError{}
	bad.Add("__all__", forms.MsgBadCredentials)

	user, err := h.Storage.GetUserByUsername(r.Context(), form.Username)
	if errors.Is(err, errors.NotFound) {
		return nil, bad
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !auth.CheckPassword(user.PasswordHash, form.Password) {
		return nil, bad
	}
	return user, nil
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	// Шаблон не должен видеть пользователя, который только что вышел
	r = r.WithContext(auth.WithUser(r.Context(), nil))
	h.render(w, r, "logged_out.html", &view{Title: "Вы вышли из системы"})
}
