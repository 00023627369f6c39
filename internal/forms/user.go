package forms

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/juju/errors"
)

const (
	msgPasswordMismatch = "Введенные пароли не совпадают."
	msgPasswordShort    = "Введённый пароль слишком короткий. Он должен содержать как минимум 8 символов."
	msgPasswordNumeric  = "Введённый пароль состоит только из цифр."
	msgPasswordCommon   = "Введённый пароль слишком широко распространён."
	msgPasswordSimilar  = "Введённый пароль слишком похож на имя пользователя."
	msgPasswordLong     = "Введённый пароль слишком длинный. Он должен занимать не более 72 байт."

	// MsgUsernameTaken - сообщение о нарушении уникальности имени пользователя.
	MsgUsernameTaken = "Пользователь с таким именем уже существует."

	// MsgBadCredentials - сообщение о неверной паре имя/пароль при входе.
	MsgBadCredentials = "Пожалуйста, введите правильные имя пользователя и пароль. Оба поля могут быть чувствительны к регистру."

	minPasswordLength = 8
	maxSimilarity     = 0.7

	// bcrypt не принимает пароли длиннее 72 байт.
	maxPasswordBytes = 72
)

var commonPasswords = map[string]bool{
	"password": true, "password1": true, "passw0rd": true, "12345678": true,
	"123456789": true, "1234567890": true, "11111111": true, "qwerty123": true,
	"qwertyuiop": true, "iloveyou": true, "sunshine": true, "princess": true,
	"football": true, "baseball": true, "welcome1": true, "admin123": true,
	"letmein1": true, "abc12345": true, "trustno1": true, "superman": true,
}

// SignupForm - форма регистрации.
type SignupForm struct {
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
	Password1 string `form:"password1" validate:"required,password"`
	Password2 string `form:"password2" validate:"required,password"`
}

// ParseSignupForm читает форму регистрации из запроса.
func ParseSignupForm(r *http.Request) (*SignupForm, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.NewNotValid(err, "form")
	}
	return &SignupForm{
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}, nil
}

// Validate проверяет поля и политику паролей. Уникальность имени проверяет
// хранилище при сохранении, см. FromConstraint.
func (f *SignupForm) Validate() error {
	verr := check(f)
	if verr.Get("password1") == nil && verr.Get("password2") == nil {
		if f.Password1 != f.Password2 {
			verr.Add("password2", msgPasswordMismatch)
		} else {
			for _, msg := range f.passwordProblems() {
				verr.Add("password2", msg)
			}
		}
	}
	return verr.OrNil()
}

func (f *SignupForm) passwordProblems() []string {
	var problems []string
	pw := f.Password2

	if similar(pw, f.Username, f.FirstName, f.LastName, f.Email) {
		problems = append(problems, msgPasswordSimilar)
	}
	if len([]rune(pw)) < minPasswordLength {
		problems = append(problems, msgPasswordShort)
	}
	if commonPasswords[strings.ToLower(pw)] {
		problems = append(problems, msgPasswordCommon)
	}
	if strings.IndexFunc(pw, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		problems = append(problems, msgPasswordNumeric)
	}
	return problems
}

// similar - пароль слишком похож на один из атрибутов пользователя или на его
// часть: доля совпадающих символов не меньше maxSimilarity.
func similar(password string, attrs ...string) bool {
	pw := strings.ToLower(password)
	pwLen := utf8.RuneCountInString(pw)
	for _, attr := range attrs {
		attr = strings.ToLower(attr)
		parts := strings.FieldsFunc(attr, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		for _, part := range append(parts, attr) {
			partLen := utf8.RuneCountInString(part)
			if partLen == 0 {
				continue
			}
			// Похожесть не может превысить отношение длин, такие части не считаем.
			longest := max(pwLen, partLen)
			if float64(min(pwLen, partLen))/float64(longest) < maxSimilarity {
				continue
			}
			dist := levenshtein.ComputeDistance(pw, part)
			if 1-float64(dist)/float64(longest) >= maxSimilarity {
				return true
			}
		}
	}
	return false
}

// LoginForm - форма входа.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

// ParseLoginForm читает форму входа из запроса.
func ParseLoginForm(r *http.Request) (*LoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.NewNotValid(err, "form")
	}
	return &LoginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Next:     r.FormValue("next"),
	}, nil
}

// Validate проверяет, что оба поля заполнены.
func (f *LoginForm) Validate() error {
	return check(f).OrNil()
}
