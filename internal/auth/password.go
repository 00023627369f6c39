package auth

import (
	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword возвращает bcrypt-хеш пароля.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Annotate(err, "hash password")
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с хешем.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
