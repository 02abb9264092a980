// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// IsValidID проверяет, что строка является корректным идентификатором сущности (UUID).
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// IsValidEmail проверяет, что строка является одиночным адресом электронной почты без отображаемого имени.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
