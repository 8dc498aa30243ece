package validator

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validator collects one message per field. The first message added for a field wins.
type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Has reports whether the field already failed a check.
func (v *Validator) Has(key string) bool {
	_, ok := v.Errors[key]
	return ok
}

// NotBlank reports whether s has any non-whitespace characters.
func NotBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// MaxChars counts characters, not bytes.
func MaxChars(s string, n int) bool {
	return utf8.RuneCountInString(s) <= n
}

func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
