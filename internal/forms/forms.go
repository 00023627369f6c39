// Package forms проверяет и нормализует данные, присланные пользователем.
package forms

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

// ValidationError содержит сообщения об ошибках по полям формы.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Unwrap позволяет проверять ошибку через errors.Is(err, errors.NotValid).
func (e *ValidationError) Unwrap() error { return errors.NotValid }

// Add добавляет сообщение к полю.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Get возвращает сообщения поля; удобно в шаблонах.
func (e *ValidationError) Get(field string) []string {
	if e == nil {
		return nil
	}
	return e.Fields[field]
}

// OrNil возвращает nil, если ошибок нет.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidationError достает *ValidationError из цепочки ошибок.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}

// FromConstraint превращает нарушение уникальности из хранилища в ошибку поля.
// Прочие ошибки возвращаются как есть.
func FromConstraint(err error, field, message string) error {
	if !errors.Is(err, errors.AlreadyExists) {
		return err
	}
	verr := &ValidationError{}
	verr.Add(field, message)
	return verr
}

const (
	msgRequired = "Обязательное поле."
	msgEmail    = "Введите правильный адрес электронной почты."
	msgUsername = "Введите правильное имя пользователя. Оно может содержать только буквы, цифры и знаки @/./+/-/_."
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("@.+-_", r) {
				return false
			}
		}
		return true
	})
	v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// check прогоняет теги validate по структуре формы.
func check(form interface{}) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(form)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("__all__", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return msgEmail
	case "username":
		return msgUsername
	case "password":
		return msgPasswordLong
	case "max":
		return fmt.Sprintf("Убедитесь, что это значение содержит не более %s символов.", fe.Param())
	}
	return "Некорректное значение."
}
